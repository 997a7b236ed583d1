package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cityford/trainer-server-go/internal/model"
)

// AppConfigRepository reads the admin-owned configuration row. The
// conversation core never writes it.
type AppConfigRepository interface {
	Get(ctx context.Context) (*model.AppConfig, error)
}

type appConfigRepo struct {
	db *sqlx.DB
}

func NewAppConfigRepository(db *sqlx.DB) AppConfigRepository {
	return &appConfigRepo{db: db}
}

func (r *appConfigRepo) Get(ctx context.Context) (*model.AppConfig, error) {
	var cfg model.AppConfig
	err := r.db.GetContext(ctx, &cfg, `
		SELECT * FROM app_config WHERE id = 'default'
	`)
	return HandleNotFound(&cfg, err)
}
