package sqlite

import "time"

type requestRow struct {
	ID          string     `gorm:"primaryKey"`
	RequesterID string     `gorm:"not null;index:idx_access_requests_requester"`
	OwnerID     string     `gorm:"not null;index:idx_access_requests_owner"`
	Duration    string     `gorm:"not null"`
	Scope       string     `gorm:"not null"`
	Message     string     `gorm:"not null;default:''"`
	Status      string     `gorm:"not null;index"`
	CreatedAt   time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime:false"`
	DecidedAt   *time.Time
}

func (requestRow) TableName() string { return "access_requests" }

type grantRow struct {
	ID        string     `gorm:"primaryKey"`
	ViewerID  string     `gorm:"not null;index:idx_access_grants_pair"`
	OwnerID   string     `gorm:"not null;index:idx_access_grants_pair;index:idx_access_grants_owner"`
	Scope     string     `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
	RequestID *string    `gorm:"uniqueIndex"`
	CreatedAt time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime:false"`
	RevokedAt *time.Time
}

func (grantRow) TableName() string { return "access_grants" }

type mediaRow struct {
	ID        string    `gorm:"primaryKey"`
	OwnerID   string    `gorm:"not null;index"`
	Kind      string    `gorm:"not null"`
	URL       string    `gorm:"not null"`
	Caption   string
	Private   bool
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (mediaRow) TableName() string { return "media_items" }

type shareRow struct {
	ID        string     `gorm:"primaryKey"`
	Kind      string     `gorm:"not null"`
	SenderID  string     `gorm:"not null;index"`
	TargetID  string     `gorm:"not null;index"`
	Scope     string     `gorm:"not null"`
	Duration  string     `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
	Message   string
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	RevokedAt *time.Time

	Items []shareItemRow `gorm:"foreignKey:ShareID;constraint:OnDelete:CASCADE"`
}

func (shareRow) TableName() string { return "direct_shares" }

type shareItemRow struct {
	ShareID  string `gorm:"primaryKey"`
	MediaID  string `gorm:"primaryKey"`
	Kind     string `gorm:"not null"`
	Position int
}

func (shareItemRow) TableName() string { return "share_items" }
