package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ItemViewCount 某商品在统计窗口内的浏览次数
type ItemViewCount struct {
	ItemID    string `db:"item_id"`
	ViewCount int64  `db:"view_count"`
}

// ViewHistoryRepository 浏览历史，写入 + 聚合都走 sqlx
// 聚合 SQL 全部使用占位符参数，任何输入都不拼进 SQL 文本
type ViewHistoryRepository interface {
	Record(userID, itemID string) error
	TopViewedItems(since time.Time, limit int) ([]ItemViewCount, error)
}

type viewHistoryRepository struct {
	db *sqlx.DB
}

func NewViewHistoryRepository(db *sqlx.DB) ViewHistoryRepository {
	return &viewHistoryRepository{db: db}
}

func (r *viewHistoryRepository) Record(userID, itemID string) error {
	now := time.Now()
	_, err := r.db.Exec(
		`INSERT INTO view_histories (id, user_id, item_id, viewed_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), userID, itemID, now, now, now,
	)
	return err
}

func (r *viewHistoryRepository) TopViewedItems(since time.Time, limit int) ([]ItemViewCount, error) {
	var counts []ItemViewCount
	err := r.db.Select(&counts,
		`SELECT item_id, COUNT(*) AS view_count FROM view_histories WHERE viewed_at >= $1 GROUP BY item_id ORDER BY view_count DESC, item_id LIMIT $2`,
		since, limit,
	)
	return counts, err
}
