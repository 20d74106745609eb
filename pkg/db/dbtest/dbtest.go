// Package dbtest 为仓储与服务测试提供内存 SQLite 数据库
package dbtest

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/wyfcoding/storefront/pkg/db"
)

// New 打开一个独立的内存数据库并迁移给定模型；单连接保证事务内外语句串行
func New(t testing.TB, models ...any) *db.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	d, err := db.Open(sqlite.Open(dsn), db.Config{Driver: "sqlite", MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(models) > 0 {
		if err := d.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}
