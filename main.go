// coapkit命令行工具：按YAML描述构建CoAP消息、发送、解析以及派生密钥
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/junbin-yang/coapkit-go/api"
	"github.com/junbin-yang/coapkit-go/pkg/coap"
	"github.com/junbin-yang/coapkit-go/pkg/crypto"
	"github.com/junbin-yang/coapkit-go/pkg/msgspec"
	"github.com/junbin-yang/coapkit-go/pkg/network"
	"github.com/junbin-yang/coapkit-go/pkg/persistence"
	"github.com/junbin-yang/coapkit-go/pkg/stream"
	"github.com/junbin-yang/coapkit-go/pkg/transport/udp"
	log "github.com/junbin-yang/coapkit-go/pkg/utils/logger"
	"github.com/pkg/errors"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/plgd-dev/go-coap/v3/udp/coder"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

var (
	// 版本信息（编译时可通过参数注入）
	Version   = "dev"     // 版本号
	BuildTime = "unknown" // 构建时间

	// 配置相关
	cfgFile string     // 配置文件路径
	config  api.Config // 全局配置
)

// rootCmd 表示基础命令
var rootCmd = &cobra.Command{
	Use:   "coapkit",
	Short: "coapkit: CoAP消息构建与调试工具",
	Long: `coapkit按YAML描述将CoAP（RFC 7252）消息编码到对齐的缓冲区，
可以输出十六进制、持久化到文件、通过UDP单播或组播发送，也可以解析收到的数据报。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
}

// versionCmd 打印版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "打印版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "coapkit %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "构建时间: %s\n", BuildTime)
	},
}

// buildCmd 构建消息并输出，可选地持久化到文件
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "按YAML描述构建消息",
	RunE:  runBuild,
}

// sendCmd 构建消息并通过UDP发送
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "构建消息并通过UDP发送",
	RunE:  runSend,
}

// inspectCmd 解析十六进制数据报或持久化的消息文件
var inspectCmd = &cobra.Command{
	Use:   "inspect [hex]",
	Short: "解析CoAP数据报",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

// deriveCmd HKDF-SHA256密钥派生
var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "使用HKDF-SHA256派生密钥",
	RunE:  runDerive,
}

func init() {
	// 在命令执行前初始化配置
	cobra.OnInitialize(initConfig)

	// 全局标志（所有命令共享）
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认是./coapkit.yaml）")
	rootCmd.PersistentFlags().String("log-level", "info", "日志级别（debug, info, warn, error）")
	rootCmd.PersistentFlags().String("log-file", "", "日志文件（默认输出到标准错误）")
	rootCmd.PersistentFlags().String("log-rotate", string(api.LogRotateSize), "日志滚动方式（size, daily）")
	rootCmd.PersistentFlags().Int("log-max-size", 10, "按大小滚动时单个日志文件上限（MB）")

	// 将命令行标志绑定到viper
	for _, name := range []string{"log-level", "log-file", "log-rotate", "log-max-size"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	buildCmd.Flags().String("spec", "", "消息描述文件（YAML）")
	buildCmd.Flags().String("out", "", "将编码后的消息持久化到文件")
	buildCmd.Flags().String("format", string(api.OutputHex), "输出格式（hex, pretty）")
	_ = buildCmd.MarkFlagRequired("spec")

	sendCmd.Flags().String("spec", "", "消息描述文件（YAML）")
	sendCmd.Flags().String("addr", "", "目标地址host:port")
	sendCmd.Flags().Bool("multicast", false, "以IPv4组播方式发送")
	sendCmd.Flags().String("group", "", "组播地址（默认224.0.1.187:5683）")
	sendCmd.Flags().StringSlice("iface", nil, "组播使用的接口名称")
	sendCmd.Flags().Duration("timeout", udp.DefaultSendTimeout, "发送超时")
	_ = sendCmd.MarkFlagRequired("spec")

	inspectCmd.Flags().String("file", "", "读取由build --out持久化的消息文件")

	deriveCmd.Flags().String("ikm", "", "输入密钥材料（十六进制）")
	deriveCmd.Flags().String("salt", "", "盐（十六进制）")
	deriveCmd.Flags().String("info", "", "上下文信息（文本）")
	deriveCmd.Flags().Int("len", 32, "输出字节数")
	_ = deriveCmd.MarkFlagRequired("ikm")

	// 添加子命令到根命令
	rootCmd.AddCommand(versionCmd, buildCmd, sendCmd, inspectCmd, deriveCmd)
}

// initConfig 初始化配置：读取配置文件、环境变量
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("coapkit")
		viper.SetConfigType("yaml")
	}

	// 环境变量前缀为COAPKIT（例如COAPKIT_LOG_LEVEL对应log-level）
	viper.SetEnvPrefix("COAPKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "使用配置文件:", viper.ConfigFileUsed())
	}
}

// loadConfig 从viper加载配置
func loadConfig() api.Config {
	cfg := api.DefaultConfig()
	if v := viper.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	cfg.LogFile = viper.GetString("log-file")
	if v := viper.GetString("log-rotate"); v != "" {
		cfg.LogRotate = api.LogRotate(v)
	}
	if v := viper.GetInt("log-max-size"); v != 0 {
		cfg.LogMaxSize = v
	}
	return cfg
}

// setupLogger 按配置创建日志实例并替换默认日志
func setupLogger() error {
	config = loadConfig()
	l, err := newLogger(config)
	if err != nil {
		return err
	}
	log.ReplaceDefault(l)
	return nil
}

func newLogger(cfg api.Config) (*log.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	opts := []log.Option{log.AddCaller(), log.AddCallerSkip(1)}
	switch {
	case cfg.LogFile == "":
		return log.New(os.Stderr, level, opts...), nil
	case cfg.LogRotate == api.LogRotateDaily:
		return log.NewDaily(cfg.LogFile, cfg.LogMaxAge, level, opts...)
	}
	return log.NewFile(log.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSize,
		MaxAgeDays: int(cfg.LogMaxAge / (24 * time.Hour)),
	}, level, opts...), nil
}

// runBuild 执行build命令
func runBuild(cmd *cobra.Command, args []string) error {
	specPath, _ := cmd.Flags().GetString("spec")
	out, _ := cmd.Flags().GetString("out")
	format, _ := cmd.Flags().GetString("format")

	msg, err := buildFromSpec(specPath)
	if err != nil {
		return err
	}
	if out != "" {
		if err := storeMessage(out, msg); err != nil {
			return err
		}
		log.Info("消息已持久化", log.String("file", out), log.Int("size", len(msg.Datagram())))
	}
	return printMessage(cmd.OutOrStdout(), msg, api.OutputFormat(format))
}

// runSend 执行send命令
func runSend(cmd *cobra.Command, args []string) (err error) {
	specPath, _ := cmd.Flags().GetString("spec")
	settings := api.SendSettings{}
	settings.Addr, _ = cmd.Flags().GetString("addr")
	settings.Multicast, _ = cmd.Flags().GetBool("multicast")
	settings.Group, _ = cmd.Flags().GetString("group")
	settings.Interfaces, _ = cmd.Flags().GetStringSlice("iface")
	settings.Timeout, _ = cmd.Flags().GetDuration("timeout")

	msg, err := buildFromSpec(specPath)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, network.CleanupGlobalState()) }()

	if settings.Multicast {
		return sendMulticast(cmd.OutOrStdout(), msg, settings)
	}
	if settings.Addr == "" {
		return errors.New("单播发送需要--addr")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), settings.Timeout)
	defer cancel()
	sender, err := udp.Dial(ctx, settings.Addr)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sender.Close()) }()
	sender.SetTimeout(settings.Timeout)

	if err := sender.Send(msg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "已发送%d字节到%s\n", len(msg.Datagram()), settings.Addr)
	return nil
}

func sendMulticast(w io.Writer, msg coap.Message, settings api.SendSettings) (err error) {
	var group *net.UDPAddr
	if settings.Group != "" {
		if group, err = net.ResolveUDPAddr("udp4", settings.Group); err != nil {
			return errors.Wrapf(err, "无效的组播地址: %s", settings.Group)
		}
	}

	sender, err := udp.NewMulticastSender(udp.MulticastConfig{Interfaces: settings.Interfaces})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sender.Close()) }()

	n, err := sender.SendMulticast(msg, group)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "已通过%d个接口组播发送%d字节\n", n, len(msg.Datagram()))
	return nil
}

// runInspect 执行inspect命令
func runInspect(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")

	var (
		msg coap.Message
		err error
	)
	switch {
	case file != "":
		msg, err = loadStoredMessage(file)
	case len(args) == 1:
		var data []byte
		if data, err = parseHex(args[0]); err == nil {
			msg, err = coap.WrapDatagram(data)
		}
	default:
		return errors.New("需要十六进制数据或--file")
	}
	if err != nil {
		return err
	}
	return printMessage(cmd.OutOrStdout(), msg, api.OutputPretty)
}

// runDerive 执行derive命令
func runDerive(cmd *cobra.Command, args []string) error {
	ikmHex, _ := cmd.Flags().GetString("ikm")
	saltHex, _ := cmd.Flags().GetString("salt")
	info, _ := cmd.Flags().GetString("info")
	n, _ := cmd.Flags().GetInt("len")

	okm, err := deriveKey(ikmHex, saltHex, info, n)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), okm)
	return nil
}

func buildFromSpec(path string) (coap.Message, error) {
	spec, err := msgspec.Load(path)
	if err != nil {
		return coap.Message{}, err
	}
	msg, err := spec.Build()
	if err != nil {
		return coap.Message{}, errors.WithMessagef(err, "构建%s失败", path)
	}
	log.Debug("消息已构建", log.String("message", msg.String()))
	return msg, nil
}

// storeMessage 通过文件流持久化消息
func storeMessage(path string, msg coap.Message) (err error) {
	f, err := stream.OpenFile(path, stream.ModeWrite)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return persistence.NewStoreContext(f).Message(&msg)
}

// loadStoredMessage 读取storeMessage写入的消息
func loadStoredMessage(path string) (msg coap.Message, err error) {
	f, err := stream.OpenFile(path, stream.ModeRead)
	if err != nil {
		return coap.Message{}, err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	err = persistence.NewRestoreContext(f).Message(&msg)
	return msg, err
}

// parseHex 解析十六进制，忽略空白、冒号和0x前缀
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "无效的十六进制数据")
	}
	return data, nil
}

func printMessage(w io.Writer, msg coap.Message, format api.OutputFormat) error {
	switch format {
	case api.OutputHex:
		_, err := fmt.Fprintln(w, hex.EncodeToString(msg.Datagram()))
		return err
	case api.OutputPretty:
		return describe(w, msg)
	}
	return errors.Errorf("未知的输出格式: %q", format)
}

// describe 输出本地解析结果，并用go-coap解码做交叉核对
func describe(w io.Writer, msg coap.Message) error {
	fmt.Fprintf(w, "%s\n", msg)
	fmt.Fprintf(w, "长度: %d字节（线上）\n", len(msg.Datagram()))
	if p := msg.Payload(); len(p) > 0 {
		fmt.Fprintf(w, "负载: %x\n", p)
	}

	decoded := pool.NewMessage(context.Background())
	defer decoded.Reset()
	if _, err := decoded.UnmarshalWithDecoder(coder.DefaultCoder, msg.Datagram()); err != nil {
		return errors.Wrap(err, "go-coap解码失败")
	}
	if path, err := decoded.Options().Path(); err == nil {
		fmt.Fprintf(w, "路径: %s\n", path)
	}
	if cf, err := decoded.ContentFormat(); err == nil {
		fmt.Fprintf(w, "内容格式: %s\n", cf)
	}
	return nil
}

func deriveKey(ikmHex, saltHex, info string, n int) (string, error) {
	ikm, err := parseHex(ikmHex)
	if err != nil {
		return "", err
	}
	var salt []byte
	if saltHex != "" {
		if salt, err = parseHex(saltHex); err != nil {
			return "", err
		}
	}
	okm, err := crypto.HKDFSHA256(salt, ikm, []byte(info), n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(okm), nil
}

// main 函数：执行root命令
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// ./coapkit build --spec msg.yaml --format pretty
// ./coapkit send --spec msg.yaml --addr 127.0.0.1:5683 --log-level debug
// ./coapkit inspect 4401007b...
