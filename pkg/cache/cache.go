// Package cache 保存文件指纹，使重复运行时可以跳过未变化文件的哈希计算。
// 路径为空时使用内存数据库，进程退出即丢弃。
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/banyuechenjiang/cardsort/pkg/logger"
)

// Entry 一条指纹缓存记录，Size 与 ModTime 用于判断文件是否变化
type Entry struct {
	ID            int64     `gorm:"primaryKey"`
	Path          string    `gorm:"uniqueIndex;not null"`
	Size          int64     `gorm:"not null"`
	ModTime       int64     `gorm:"not null"`
	ContentHash   string    `gorm:"not null"`
	Perceptual    int64     `gorm:"not null;default:0"`
	HasPerceptual bool      `gorm:"not null;default:false"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (Entry) TableName() string {
	return "fingerprints"
}

// PerceptualBits 以无符号形式返回感知哈希（SQLite 只有有符号整数）
func (e Entry) PerceptualBits() uint64 {
	return uint64(e.Perceptual)
}

// Store 指纹缓存
type Store struct {
	db     *gorm.DB
	mu     sync.Mutex
	hits   int
	misses int
}

// Open 打开缓存；path 为空时使用内存数据库
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			logger.Get().Error().Err(err).Msg("扩展缓存路径失败")
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
			logger.Get().Error().Err(err).Msgf("创建缓存目录失败: %s", filepath.Dir(expanded))
			return nil, err
		}
		dsn = expanded + "?_pragma=journal_mode(WAL)"
		logger.Get().Info().Msgf("使用指纹缓存: %s", expanded)
	} else {
		logger.Get().Debug().Msg("使用内存指纹缓存")
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开缓存数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接: %w", err)
	}
	// 内存库只存在于单个连接上
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("创建缓存表: %w", err)
	}

	return &Store{db: db}, nil
}

func expandPath(path string) (string, error) {
	if len(path) >= 2 && path[0] == '~' && (path[1] == '/' || path[1] == '\\') {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Lookup 查找路径对应的记录，大小或修改时间不一致时视为未命中
func (s *Store) Lookup(path string, size, modTime int64) (Entry, bool) {
	var e Entry
	err := s.db.Where("path = ?", path).Limit(1).Find(&e).Error

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil || e.ID == 0 || e.Size != size || e.ModTime != modTime {
		if err != nil {
			logger.Get().Debug().Err(err).Msgf("查询指纹缓存失败: %s", path)
		}
		s.misses++
		return Entry{}, false
	}
	s.hits++
	logger.Get().Trace().Msgf("指纹缓存命中: %s", path)
	return e, true
}

// Save 写入或覆盖路径对应的记录
func (s *Store) Save(e Entry) error {
	e.ID = 0
	e.UpdatedAt = time.Now()
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"size", "mod_time", "content_hash", "perceptual", "has_perceptual", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("写入指纹缓存: %w", err)
	}
	return nil
}

// Stats 命中与未命中次数
func (s *Store) Stats() (hits, misses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
