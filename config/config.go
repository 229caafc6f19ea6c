package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cadence/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type SMTPConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"-"`
	FromEmail  string `json:"from_email"`
	FromName   string `json:"from_name"`
	Encryption string `json:"encryption"` // SSL or STARTTLS
}

type IMAPConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"-"`
	Mailbox    string `json:"mailbox"`
	Encryption string `json:"encryption"`
}

type BedrockConfig struct {
	Region  string `json:"region"`
	ModelID string `json:"model_id"`
}

type Config struct {
	Environment    string `json:"environment"`
	ServerPort     string `json:"server_port"`
	SentryDSN      string `json:"-"`
	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	SMTP    SMTPConfig    `json:"smtp"`
	IMAP    IMAPConfig    `json:"imap"`
	Redis   RedisConfig   `json:"redis"`
	Bedrock BedrockConfig `json:"bedrock"`

	// Worker timing
	SequenceInterval time.Duration `json:"sequence_interval"`
	IngestInterval   time.Duration `json:"ingest_interval"`
	SendBatchSize    int           `json:"send_batch_size"`

	// Requests per minute allowed on the trigger endpoints
	RateLimitTrigger int `json:"rate_limit_trigger"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "cadence"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Username:   getEnv("SMTP_USERNAME", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			FromEmail:  getEnv("SMTP_FROM_EMAIL", ""),
			FromName:   getEnv("SMTP_FROM_NAME", ""),
			Encryption: getEnv("SMTP_ENCRYPTION", "STARTTLS"),
		},
		IMAP: IMAPConfig{
			Host:       getEnv("IMAP_HOST", ""),
			Port:       getEnvAsInt("IMAP_PORT", 993),
			Username:   getEnv("IMAP_USERNAME", ""),
			Password:   getEnv("IMAP_PASSWORD", ""),
			Mailbox:    getEnv("IMAP_MAILBOX", "INBOX"),
			Encryption: getEnv("IMAP_ENCRYPTION", "SSL"),
		},
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ADDRESS", "") != "",
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Bedrock: BedrockConfig{
			Region:  getEnv("AWS_REGION", "us-east-1"),
			ModelID: getEnv("BEDROCK_MODEL_ID", ""),
		},

		SequenceInterval: getEnvAsDuration("SEQUENCE_INTERVAL", time.Minute),
		IngestInterval:   getEnvAsDuration("INGEST_INTERVAL", 5*time.Minute),
		SendBatchSize:    getEnvAsInt("SEND_BATCH_SIZE", 25),
		RateLimitTrigger: getEnvAsInt("RATE_LIMIT_TRIGGER", 30),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.Environment == "production" {
		if AppConfig.SMTP.Host == "" || AppConfig.SMTP.FromEmail == "" {
			return fmt.Errorf("SMTP settings are required in production")
		}
		if AppConfig.IMAP.Host == "" {
			return fmt.Errorf("IMAP settings are required in production")
		}
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("✅ Successfully connected to the database")
	log.Println("🔄 Starting database migration...")
	if err := migrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("✅ Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		log.Printf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("SMTP: %s:%d, IMAP: %s:%d (%s)",
		AppConfig.SMTP.Host, AppConfig.SMTP.Port,
		AppConfig.IMAP.Host, AppConfig.IMAP.Port, AppConfig.IMAP.Mailbox)
}

func migrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Contact{},
		&models.ContactAttribute{},
		&models.Sequence{},
		&models.SequenceStep{},
		&models.SequenceState{},
		&models.SentEmailRecord{},
		&models.SuppressionEntry{},
		&models.InboundMessage{},
		&models.IngestCheckpoint{},
	)
}
