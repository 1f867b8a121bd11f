package crypto

import (
	"testing"

	"github.com/junbin-yang/coapkit-go/pkg/persistence"
	"github.com/junbin-yang/coapkit-go/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var certificateChainData = []byte("" +
	"\x00\x00\x00\x03" + // 条目数
	// 条目1：文件
	"F" +
	"\x00" +
	"\x00\x00\x00\x0a" +
	"cert1.der\x00" +
	"\x00\x00\x00\x09" +
	"\xff\xff\xff\xff" +
	// 条目2：目录（无口令字段）
	"P" +
	"\x00" +
	"\x00\x00\x00\x0b" +
	"/etc/certs\x00" +
	"\x00\x00\x00\x0a" +
	// 条目3：缓冲区
	"B" +
	"\x00" +
	"\x00\x00\x00\x0a" +
	"dummy_cert" +
	"\x00\x00\x00\x0a" +
	"\xff\xff\xff\xff")

func TestPersistCertificateChain(t *testing.T) {
	entry1 := CertificateChainFromFile("cert1.der")
	entry2 := CertificateChainFromPath("/etc/certs")
	entry3 := CertificateChainFromBuffer([]byte("dummy_cert"))
	entries12 := CertificateChainFromArray(entry1, entry2)
	entries123 := CertificateChainFromList(entries12, entry3)

	membuf := stream.NewMemBuf(0)
	require.NoError(t, PersistCertificateChain(persistence.NewStoreContext(membuf), entries123))
	assert.Equal(t, certificateChainData, membuf.TakeOwnership())
}

func TestCertificateChainArrayPersistence(t *testing.T) {
	var entries []SecurityInfo
	restore := persistence.NewRestoreContext(stream.NewInBuf(certificateChainData))
	require.NoError(t, CertificateChainArrayPersistence(restore, &entries))
	require.Len(t, entries, 3)

	assert.Equal(t, TypeCertificateChain, entries[0].Type)
	assert.Equal(t, SourceFile, entries[0].Source)
	assert.Equal(t, "cert1.der", entries[0].Filename)
	assert.Nil(t, entries[0].Password)

	assert.Equal(t, TypeCertificateChain, entries[1].Type)
	assert.Equal(t, SourcePath, entries[1].Source)
	assert.Equal(t, "/etc/certs", entries[1].Path)

	assert.Equal(t, TypeCertificateChain, entries[2].Type)
	assert.Equal(t, SourceBuffer, entries[2].Source)
	assert.Equal(t, []byte("dummy_cert"), entries[2].Buffer)
	assert.Nil(t, entries[2].Password)

	membuf := stream.NewMemBuf(0)
	require.NoError(t, CertificateChainArrayPersistence(persistence.NewStoreContext(membuf), &entries))
	assert.Equal(t, certificateChainData, membuf.TakeOwnership())
}

func TestCertificateChainPersistence_Password(t *testing.T) {
	in := []SecurityInfo{
		CertificateChainFromFile("client.p12").WithPassword("secret"),
		CertificateChainFromBuffer([]byte{1, 2, 3}).WithPassword(""),
	}

	membuf := stream.NewMemBuf(0)
	require.NoError(t, CertificateChainArrayPersistence(persistence.NewStoreContext(membuf), &in))

	var out []SecurityInfo
	require.NoError(t, CertificateChainArrayPersistence(persistence.NewRestoreContext(membuf), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "client.p12", out[0].Filename)
	require.NotNil(t, out[0].Password)
	assert.Equal(t, "secret", *out[0].Password)
	assert.Equal(t, []byte{1, 2, 3}, out[1].Buffer)
	require.NotNil(t, out[1].Password)
	assert.Equal(t, "", *out[1].Password)
}

func TestCertificateChainPersistence_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  error
	}{
		{"未知标记", "\x00\x00\x00\x01X\x00", ErrInvalidPersistedData},
		{"未知版本", "\x00\x00\x00\x01F\x01", ErrInvalidPersistedData},
		{"文件名长度不符", "\x00\x00\x00\x01F\x00\x00\x00\x00\x03ab\x00\x00\x00\x00\x05\xff\xff\xff\xff", ErrInvalidPersistedData},
		{"数据截断", "\x00\x00\x00\x01B\x00\x00\x00\x00\x0aabc", persistence.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out []SecurityInfo
			ctx := persistence.NewRestoreContext(stream.NewInBuf([]byte(tt.data)))
			err := CertificateChainArrayPersistence(ctx, &out)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPersistCertificateChain_UnsupportedSource(t *testing.T) {
	info := CertificateChainFromArray(SecurityInfo{Type: TypeCertificateChain, Source: Source(99)})
	err := PersistCertificateChain(persistence.NewStoreContext(stream.NewMemBuf(0)), info)
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	err = PersistCertificateChain(persistence.NewRestoreContext(stream.NewInBuf(nil)), info)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSecurityInfo_Leaves(t *testing.T) {
	info := CertificateChainFromList(
		CertificateChainFromArray(),
		SecurityInfo{},
		CertificateChainFromArray(CertificateChainFromFile("a"), CertificateChainFromFile("b")),
		CertificateChainFromPath("c"),
	)
	leaves := info.Leaves()
	require.Len(t, leaves, 3)
	assert.Equal(t, "a", leaves[0].Filename)
	assert.Equal(t, "b", leaves[1].Filename)
	assert.Equal(t, "c", leaves[2].Path)
}
