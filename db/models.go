package db

import "time"

// User is a chat platform account keyed by its numeric platform ID.
type User struct {
	UserID     int64      `gorm:"primaryKey"`
	Nickname   *string    `gorm:"size:32"`
	Timezone   *string    `gorm:"size:50"` // IANA timezone name
	Birthday   *time.Time `gorm:"type:date"`
	Coins      int        `gorm:"not null;default:0"`
	Exp        int        `gorm:"not null;default:0"`
	IsBanned   bool       `gorm:"not null;default:false"`
	LastSeenAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (User) TableName() string {
	return "users"
}

// Game is a feature or mini-game users can hold profiles in.
type Game struct {
	GameID      uint    `gorm:"primaryKey"`
	Name        string  `gorm:"size:100;not null;uniqueIndex"`
	Description *string `gorm:"type:text"`
}

func (Game) TableName() string {
	return "games"
}

// Profile is a per-game profile owned by a user.
type Profile struct {
	ProfileID   uint    `gorm:"primaryKey"`
	UserID      int64   `gorm:"not null;index:idx_profiles_user_id"`
	GameID      uint    `gorm:"not null"`
	ProfileName *string `gorm:"size:100"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Profile) TableName() string {
	return "profiles"
}

// CommandUsage records one command invocation, including failures.
type CommandUsage struct {
	UsageID      uint   `gorm:"primaryKey"`
	UserID       int64  `gorm:"not null;index:idx_command_usage_user_id"`
	CommandName  string `gorm:"size:100;not null"`
	GuildID      *int64
	ErrorMessage *string   `gorm:"type:text"`
	ExecutedAt   time.Time `gorm:"autoCreateTime"`
}

func (CommandUsage) TableName() string {
	return "command_usage"
}

// Achievement is an unlockable badge with optional rewards. Rarity is one
// of: common, uncommon, rare, epic, legendary.
type Achievement struct {
	AchievementID uint    `gorm:"primaryKey"`
	Name          string  `gorm:"size:100;not null;uniqueIndex"`
	Description   string  `gorm:"type:text;not null"`
	Rarity        string  `gorm:"size:20;not null;default:common"`
	CoinReward    int     `gorm:"not null;default:0"`
	ExpReward     int     `gorm:"not null;default:0"`
	IconURL       *string `gorm:"size:255"`
	Category      *string `gorm:"size:50"`
	IsActive      bool    `gorm:"not null;default:true"`
	IsHidden      bool    `gorm:"not null;default:false"` // hidden until unlocked
	CreatedAt     time.Time
}

func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement joins users to the achievements they have unlocked.
type UserAchievement struct {
	UserID        int64     `gorm:"primaryKey;autoIncrement:false"`
	AchievementID uint      `gorm:"primaryKey;autoIncrement:false"`
	Progress      int       `gorm:"not null;default:100"` // percent complete
	UnlockedAt    time.Time `gorm:"autoCreateTime"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}

// AllModels lists every model the schema sync manages, in dependency
// order.
func AllModels() []any {
	return []any{
		&User{},
		&Game{},
		&Profile{},
		&CommandUsage{},
		&Achievement{},
		&UserAchievement{},
	}
}
