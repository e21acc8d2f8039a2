package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Audience AudienceConfig
	Faces    FacesConfig
	Personas PersonasConfig
	MQTT     MQTTConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	audience, err := loadAudienceConfig()
	if err != nil {
		return nil, err
	}

	faces, err := loadFacesConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Audience: audience,
		Faces:    faces,
		Personas: PersonasConfig{CataloguePath: strings.TrimSpace(os.Getenv("PERSONA_CATALOGUE_PATH"))},
		MQTT: MQTTConfig{
			Broker:      strings.TrimSpace(os.Getenv("MQTT_BROKER")),
			TopicPrefix: getEnvOrDefault("MQTT_TOPIC_PREFIX", "fake-audience"),
			ClientID:    getEnvOrDefault("MQTT_CLIENT_ID", "fake-audience-backend"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "9000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":9000" 或 "127.0.0.1:9000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		// 弹幕需要多样性，默认偏高的温度。
		val := 0.8
		temperature = &val
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens == nil {
		val := 50
		maxTokens = &val
	}

	timeout, err := parseDurationEnv("AI_GENERATION_TIMEOUT", 8*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}, nil
}

// AudienceConfig 描述虚拟观众调度参数。
type AudienceConfig struct {
	IdleMin             time.Duration
	IdleMax             time.Duration
	BurstSize           int
	Stagger             time.Duration
	MentionCooldown     time.Duration
	MinConfidence       float64
	MinTranscriptLength int
	GreetingDelay       time.Duration
	MinViewers          int
	MaxViewers          int
	InitialViewers      int
	DriftInterval       time.Duration
	DriftStepMin        int
	DriftStepMax        int
}

func loadAudienceConfig() (AudienceConfig, error) {
	var (
		cfg AudienceConfig
		err error
	)

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"AUDIENCE_IDLE_MIN", 5 * time.Second, &cfg.IdleMin},
		{"AUDIENCE_IDLE_MAX", 13 * time.Second, &cfg.IdleMax},
		{"AUDIENCE_BURST_STAGGER", 200 * time.Millisecond, &cfg.Stagger},
		{"AUDIENCE_MENTION_COOLDOWN", 10 * time.Second, &cfg.MentionCooldown},
		{"AUDIENCE_GREETING_DELAY", 1500 * time.Millisecond, &cfg.GreetingDelay},
		{"AUDIENCE_DRIFT_INTERVAL", 3 * time.Second, &cfg.DriftInterval},
	}
	for _, d := range durations {
		if *d.dest, err = parseDurationEnv(d.key, d.def); err != nil {
			return AudienceConfig{}, err
		}
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"AUDIENCE_BURST_SIZE", 3, &cfg.BurstSize},
		{"AUDIENCE_MIN_TRANSCRIPT_LENGTH", 2, &cfg.MinTranscriptLength},
		{"AUDIENCE_MIN_VIEWERS", 0, &cfg.MinViewers},
		{"AUDIENCE_MAX_VIEWERS", 100, &cfg.MaxViewers},
		{"AUDIENCE_INITIAL_VIEWERS", 5, &cfg.InitialViewers},
		{"AUDIENCE_DRIFT_STEP_MIN", 1, &cfg.DriftStepMin},
		{"AUDIENCE_DRIFT_STEP_MAX", 3, &cfg.DriftStepMax},
	}
	for _, i := range ints {
		val, err := parseOptionalIntEnv(i.key)
		if err != nil {
			return AudienceConfig{}, err
		}
		*i.dest = i.def
		if val != nil {
			*i.dest = *val
		}
	}

	minConfidence, err := parseOptionalFloatEnv("AUDIENCE_MIN_CONFIDENCE")
	if err != nil {
		return AudienceConfig{}, err
	}
	cfg.MinConfidence = 0.3
	if minConfidence != nil {
		cfg.MinConfidence = *minConfidence
	}

	if err := cfg.validate(); err != nil {
		return AudienceConfig{}, err
	}
	return cfg, nil
}

func (c AudienceConfig) validate() error {
	switch {
	case c.IdleMin <= 0 || c.IdleMax < c.IdleMin:
		return fmt.Errorf("invalid idle interval %s..%s", c.IdleMin, c.IdleMax)
	case c.BurstSize < 1:
		return fmt.Errorf("invalid AUDIENCE_BURST_SIZE %d", c.BurstSize)
	case c.Stagger < 0 || c.MentionCooldown < 0 || c.GreetingDelay < 0 || c.DriftInterval < 0:
		return fmt.Errorf("audience durations must not be negative")
	case c.MinViewers < 0 || c.MaxViewers < c.MinViewers:
		return fmt.Errorf("invalid audience band %d..%d", c.MinViewers, c.MaxViewers)
	case c.DriftStepMin < 0 || c.DriftStepMax < c.DriftStepMin:
		return fmt.Errorf("invalid drift step %d..%d", c.DriftStepMin, c.DriftStepMax)
	case c.MinTranscriptLength < 0:
		return fmt.Errorf("invalid AUDIENCE_MIN_TRANSCRIPT_LENGTH %d", c.MinTranscriptLength)
	}
	return nil
}

// FacesConfig 描述人脸库与匹配参数。
type FacesConfig struct {
	MatchThreshold float64
	GalleryPath    string
	KeepSamples    bool
}

func loadFacesConfig() (FacesConfig, error) {
	threshold, err := parseOptionalFloatEnv("FACE_MATCH_THRESHOLD")
	if err != nil {
		return FacesConfig{}, err
	}
	keep, err := parseBoolEnv("FACE_KEEP_SAMPLES", false)
	if err != nil {
		return FacesConfig{}, err
	}

	cfg := FacesConfig{
		MatchThreshold: 0.6,
		GalleryPath:    strings.TrimSpace(os.Getenv("FACE_GALLERY_PATH")),
		KeepSamples:    keep,
	}
	if threshold != nil {
		if *threshold <= 0 {
			return FacesConfig{}, fmt.Errorf("invalid FACE_MATCH_THRESHOLD value %v", *threshold)
		}
		cfg.MatchThreshold = *threshold
	}
	return cfg, nil
}

// PersonasConfig 指定可选的观众目录文件。
type PersonasConfig struct {
	CataloguePath string
}

// MQTTConfig 描述房间事件镜像的 MQTT 连接，Broker 为空时不启用。
type MQTTConfig struct {
	Broker      string
	TopicPrefix string
	ClientID    string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseDurationEnv 接受 Go duration 字符串，纯数字按毫秒处理。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}

	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return val, nil
}
