package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	domain "github.com/nvclab/student-sync/internal/domain/sync"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// CoercionKind names the transform applied to a CSV cell before it is
// written to the destination field.
type CoercionKind string

const (
	CoerceText    CoercionKind = "text"
	CoercePhone   CoercionKind = "phone"
	CoerceInteger CoercionKind = "integer"
	CoerceDate    CoercionKind = "date"
)

const (
	TableStudent  = "student"
	TableLearning = "learning"
)

// FieldRule maps one recognized source column to a destination field in one
// of the two tables. The full rule set is declared up front and validated at
// load time instead of being probed at point of use.
type FieldRule struct {
	Source string       `json:"source" validate:"required"`
	Dest   string       `json:"dest" validate:"required"`
	Table  string       `json:"table" validate:"oneof=student learning"`
	Coerce CoercionKind `json:"coerce" validate:"oneof=text phone integer date"`
}

type Config struct {
	AppID     string `validate:"required"`
	AppSecret string `validate:"required"`
	BaseURL   string `validate:"required,url"`

	StudentTable  domain.TableRef `validate:"required"`
	LearningTable domain.TableRef `validate:"required"`

	StudentIDField string `validate:"required"`
	NicknameField  string `validate:"required"`
	CourseField    string `validate:"required"`
	DateField      string `validate:"required"`
	LinkField      string `validate:"required"`

	Rules []FieldRule `validate:"min=1,dive"`

	Concurrency int    `validate:"min=1,max=16"`
	CacheDBPath string `validate:"required"`
	Port        string `validate:"required"`
}

// Load reads configuration from the environment (a .env file is honored when
// present) and validates it. A missing credential or table identifier is
// fatal: no pass may start on a partial configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppID:     os.Getenv("FEISHU_APP_ID"),
		AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		BaseURL:   getEnv("FEISHU_BASE_URL", "https://open.feishu.cn/open-apis"),
		StudentTable: domain.TableRef{
			AppToken: os.Getenv("STUDENT_TABLE_APP_TOKEN"),
			TableID:  os.Getenv("STUDENT_TABLE_ID"),
		},
		LearningTable: domain.TableRef{
			AppToken: os.Getenv("LEARNING_TABLE_APP_TOKEN"),
			TableID:  os.Getenv("LEARNING_TABLE_ID"),
		},
		StudentIDField: getEnv("STUDENT_ID_FIELD", "用户ID"),
		NicknameField:  getEnv("NICKNAME_FIELD", "昵称"),
		CourseField:    getEnv("COURSE_FIELD", "课程"),
		DateField:      getEnv("LEARNING_DATE_FIELD", "学习日期"),
		LinkField:      getEnv("STUDENT_LINK_FIELD", "学员总表"),
		Rules:          DefaultFieldRules(),
		Concurrency:    getIntEnv("SYNC_CONCURRENCY", 4),
		CacheDBPath:    getEnv("CACHE_DB_PATH", "cache/student-sync.db"),
		Port:           getEnv("PORT", "8080"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// DefaultFieldRules covers the column names the upstream CSV exports have
// been seen to use, both Chinese and English spellings.
func DefaultFieldRules() []FieldRule {
	return []FieldRule{
		{Source: "用户ID", Dest: "用户ID", Table: TableStudent, Coerce: CoerceText},
		{Source: "user_id", Dest: "用户ID", Table: TableStudent, Coerce: CoerceText},
		{Source: "User ID", Dest: "用户ID", Table: TableStudent, Coerce: CoerceText},
		{Source: "userid", Dest: "用户ID", Table: TableStudent, Coerce: CoerceText},
		{Source: "昵称", Dest: "昵称", Table: TableStudent, Coerce: CoerceText},
		{Source: "nickname", Dest: "昵称", Table: TableStudent, Coerce: CoerceText},
		{Source: "用户昵称", Dest: "昵称", Table: TableStudent, Coerce: CoerceText},
		{Source: "手机号", Dest: "手机号", Table: TableStudent, Coerce: CoercePhone},
		{Source: "phone", Dest: "手机号", Table: TableStudent, Coerce: CoercePhone},
		{Source: "电话", Dest: "手机号", Table: TableStudent, Coerce: CoercePhone},
		{Source: "mobile", Dest: "手机号", Table: TableStudent, Coerce: CoercePhone},
		{Source: "姓名", Dest: "姓名", Table: TableStudent, Coerce: CoerceText},
		{Source: "城市", Dest: "城市", Table: TableStudent, Coerce: CoerceText},
		// seen in the wild with an embedded space
		{Source: "城 市", Dest: "城市", Table: TableStudent, Coerce: CoerceText},
		{Source: "微信号", Dest: "微信号", Table: TableStudent, Coerce: CoerceText},
		{Source: "性别", Dest: "性别", Table: TableStudent, Coerce: CoerceText},
		{Source: "地址", Dest: "地址", Table: TableStudent, Coerce: CoerceText},
		{Source: "年龄", Dest: "年龄", Table: TableStudent, Coerce: CoerceInteger},
		{Source: "age", Dest: "年龄", Table: TableStudent, Coerce: CoerceInteger},
		{Source: "行业", Dest: "行业", Table: TableStudent, Coerce: CoerceText},
		{Source: "课程", Dest: "课程", Table: TableLearning, Coerce: CoerceText},
		{Source: "course", Dest: "课程", Table: TableLearning, Coerce: CoerceText},
		{Source: "课程名称", Dest: "课程", Table: TableLearning, Coerce: CoerceText},
		{Source: "course_name", Dest: "课程", Table: TableLearning, Coerce: CoerceText},
		{Source: "学习日期", Dest: "学习日期", Table: TableLearning, Coerce: CoerceDate},
		{Source: "learning_date", Dest: "学习日期", Table: TableLearning, Coerce: CoerceDate},
		{Source: "报名日期", Dest: "学习日期", Table: TableLearning, Coerce: CoerceDate},
		{Source: "日期", Dest: "学习日期", Table: TableLearning, Coerce: CoerceDate},
		{Source: "date", Dest: "学习日期", Table: TableLearning, Coerce: CoerceDate},
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
