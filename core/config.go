package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		JWTExpirationDelta time.Duration
		CORSOrigins        []string
		LoginRateLimit     int
		LoginRateWindow    time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	AdminConfig struct {
		InitEmail    string
		InitPassword string
	}

	// EngineConfig configures the backend's client of the avatar engine gateway.
	EngineConfig struct {
		BaseURL          string
		SessionURL       string // returned to students on session creation
		CreateTimeout    time.Duration
		ChatTimeout      time.Duration
		StreamTimeout    time.Duration
		WebRTCTimeout    time.Duration
		PreviewTimeout   time.Duration
		HealthTimeout    time.Duration
		OperationTimeout time.Duration
		MaxVideoSize     int64
		MaxAudioSize     int64
	}

	// GatewayConfig configures the avatar engine gateway itself.
	GatewayConfig struct {
		Host               string
		Version            string
		LipsyncURL         string
		TTSURL             string
		CreateTimeout      time.Duration
		StartTimeout       time.Duration
		OperationTimeout   time.Duration
		DefaultRefFile     string
		DefaultAvatarModel string
		DefaultTTSModel    string
	}

	LLMConfig struct {
		OllamaURL        string
		DefaultModel     string
		FallbackModel    string
		Temperature      float64
		MaxTokens        int
		Timeout          time.Duration
		MaxHistoryTurns  int
		GuardrailEnabled bool
		RAGEnabled       bool
		RAGURL           string
		RAGTopK          int
	}

	TTSConfig struct {
		Timeout       time.Duration
		CloneTimeout  time.Duration
		DefaultEngine string
		DefaultVoice  string
		CacheEnabled  bool
		CacheTTL      time.Duration
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		SecretKey        string
		DefaultFromEmail string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridAPIKey   string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Admin    AdminConfig
		Engine   EngineConfig
		Gateway  GatewayConfig
		LLM      LLMConfig
		TTS      TTSConfig
	}
)

// Address returns the host:port of the database server.
func (c DatabaseConfig) Address() string {
	if c.Port == "" {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Virtual Tutor")
	v.SetDefault("secretKey", "dev-secret-change-me")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridAPIKey", "")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.readTimeout", 5*time.Minute)
	v.SetDefault("server.writeTimeout", 10*time.Minute)
	v.SetDefault("server.jwtExpirationDelta", 1440*time.Minute)
	v.SetDefault("server.corsOrigins", []string{"http://localhost:3000", "http://localhost:8080", "http://127.0.0.1:8080"})
	v.SetDefault("server.loginRateLimit", 10)
	v.SetDefault("server.loginRateWindow", time.Minute)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "virtualtutor")
	v.SetDefault("database.password", "virtualtutor")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.name", "virtualtutor")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("admin.initEmail", "admin@example.com")
	v.SetDefault("admin.initPassword", "admin123")

	v.SetDefault("engine.baseURL", "http://localhost:8001")
	v.SetDefault("engine.sessionURL", "wss://mock-ai-engine.example.com/session/123")
	v.SetDefault("engine.createTimeout", 300*time.Second)
	v.SetDefault("engine.chatTimeout", 60*time.Second)
	v.SetDefault("engine.streamTimeout", 60*time.Second)
	v.SetDefault("engine.webrtcTimeout", 30*time.Second)
	v.SetDefault("engine.previewTimeout", 30*time.Second)
	v.SetDefault("engine.healthTimeout", 5*time.Second)
	v.SetDefault("engine.operationTimeout", 30*time.Second)
	v.SetDefault("engine.maxVideoSize", 100*1024*1024)
	v.SetDefault("engine.maxAudioSize", 50*1024*1024)

	v.SetDefault("gateway.host", "0.0.0.0:8001")
	v.SetDefault("gateway.version", "1.0.0")
	v.SetDefault("gateway.lipsyncURL", "http://localhost:8615")
	v.SetDefault("gateway.ttsURL", "http://localhost:8604")
	v.SetDefault("gateway.createTimeout", 200*time.Second)
	v.SetDefault("gateway.startTimeout", 300*time.Second)
	v.SetDefault("gateway.operationTimeout", 30*time.Second)
	v.SetDefault("gateway.defaultRefFile", "ref_audio/silence.wav")
	v.SetDefault("gateway.defaultAvatarModel", "MuseTalk")
	v.SetDefault("gateway.defaultTTSModel", "edge-tts")

	v.SetDefault("llm.ollamaURL", "http://localhost:11434")
	v.SetDefault("llm.defaultModel", "mistral-nemo:12b-instruct-2407-fp16")
	v.SetDefault("llm.fallbackModel", "llama3.1:8b-instruct-q4_K_M")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.maxTokens", 2048)
	v.SetDefault("llm.timeout", 300*time.Second)
	v.SetDefault("llm.maxHistoryTurns", 5)
	v.SetDefault("llm.guardrailEnabled", true)
	v.SetDefault("llm.ragEnabled", false)
	v.SetDefault("llm.ragURL", "http://localhost:8602")
	v.SetDefault("llm.ragTopK", 5)

	v.SetDefault("tts.timeout", 60*time.Second)
	v.SetDefault("tts.cloneTimeout", 120*time.Second)
	v.SetDefault("tts.defaultEngine", "edge-tts")
	v.SetDefault("tts.defaultVoice", "zh-CN-XiaoxiaoNeural")
	v.SetDefault("tts.cacheEnabled", true)
	v.SetDefault("tts.cacheTTL", 24*time.Hour)
}

// NewConfig loads the configuration of the current ENV:
// DEV (local; default), TEST, QA, PROD.
// Keys are overridable from the environment, prefixed by ENV, e.g. `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		WorkDir:          wd,
		SecretKey:        v.GetString("secretKey"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridAPIKey"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			ReadTimeout:        v.GetDuration("server.readTimeout"),
			WriteTimeout:       v.GetDuration("server.writeTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			CORSOrigins:        v.GetStringSlice("server.corsOrigins"),
			LoginRateLimit:     v.GetInt("server.loginRateLimit"),
			LoginRateWindow:    v.GetDuration("server.loginRateWindow"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Name:          v.GetString("database.name"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Admin: AdminConfig{
			InitEmail:    v.GetString("admin.initEmail"),
			InitPassword: v.GetString("admin.initPassword"),
		},
		Engine: EngineConfig{
			BaseURL:          strings.TrimRight(v.GetString("engine.baseURL"), "/"),
			SessionURL:       v.GetString("engine.sessionURL"),
			CreateTimeout:    v.GetDuration("engine.createTimeout"),
			ChatTimeout:      v.GetDuration("engine.chatTimeout"),
			StreamTimeout:    v.GetDuration("engine.streamTimeout"),
			WebRTCTimeout:    v.GetDuration("engine.webrtcTimeout"),
			PreviewTimeout:   v.GetDuration("engine.previewTimeout"),
			HealthTimeout:    v.GetDuration("engine.healthTimeout"),
			OperationTimeout: v.GetDuration("engine.operationTimeout"),
			MaxVideoSize:     v.GetInt64("engine.maxVideoSize"),
			MaxAudioSize:     v.GetInt64("engine.maxAudioSize"),
		},
		Gateway: GatewayConfig{
			Host:               v.GetString("gateway.host"),
			Version:            v.GetString("gateway.version"),
			LipsyncURL:         strings.TrimRight(v.GetString("gateway.lipsyncURL"), "/"),
			TTSURL:             strings.TrimRight(v.GetString("gateway.ttsURL"), "/"),
			CreateTimeout:      v.GetDuration("gateway.createTimeout"),
			StartTimeout:       v.GetDuration("gateway.startTimeout"),
			OperationTimeout:   v.GetDuration("gateway.operationTimeout"),
			DefaultRefFile:     v.GetString("gateway.defaultRefFile"),
			DefaultAvatarModel: v.GetString("gateway.defaultAvatarModel"),
			DefaultTTSModel:    v.GetString("gateway.defaultTTSModel"),
		},
		LLM: LLMConfig{
			OllamaURL:        strings.TrimRight(v.GetString("llm.ollamaURL"), "/"),
			DefaultModel:     v.GetString("llm.defaultModel"),
			FallbackModel:    v.GetString("llm.fallbackModel"),
			Temperature:      v.GetFloat64("llm.temperature"),
			MaxTokens:        v.GetInt("llm.maxTokens"),
			Timeout:          v.GetDuration("llm.timeout"),
			MaxHistoryTurns:  v.GetInt("llm.maxHistoryTurns"),
			GuardrailEnabled: v.GetBool("llm.guardrailEnabled"),
			RAGEnabled:       v.GetBool("llm.ragEnabled"),
			RAGURL:           strings.TrimRight(v.GetString("llm.ragURL"), "/"),
			RAGTopK:          v.GetInt("llm.ragTopK"),
		},
		TTS: TTSConfig{
			Timeout:       v.GetDuration("tts.timeout"),
			CloneTimeout:  v.GetDuration("tts.cloneTimeout"),
			DefaultEngine: v.GetString("tts.defaultEngine"),
			DefaultVoice:  v.GetString("tts.defaultVoice"),
			CacheEnabled:  v.GetBool("tts.cacheEnabled"),
			CacheTTL:      v.GetDuration("tts.cacheTTL"),
		},
	}
}
