package repository

import "github.com/jackc/pgx/v5/pgtype"

type Session struct {
	ID        string
	Title     string
	ImagePath pgtype.Text
	Mode      string
	CreatedAt pgtype.Timestamptz
}

type Message struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	UsageData pgtype.Text
	CreatedAt pgtype.Timestamptz
}
