package db

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newModelDB(t *testing.T) *gorm.DB {
	t.Helper()

	orm, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}

	if err := orm.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("Failed to migrate models: %v", err)
	}

	return orm
}

func TestModelsRoundTrip(t *testing.T) {
	orm := newModelDB(t)

	nickname := "kiwi"
	tz := "Europe/Vienna"
	user := User{
		UserID:   81273,
		Nickname: &nickname,
		Timezone: &tz,
		Coins:    120,
		Exp:      3400,
	}
	if err := orm.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	var got User
	if err := orm.First(&got, "user_id = ?", int64(81273)).Error; err != nil {
		t.Fatalf("Failed to load user: %v", err)
	}

	if got.Nickname == nil || *got.Nickname != "kiwi" {
		t.Errorf("Expected nickname 'kiwi', got %v", got.Nickname)
	}
	if got.Coins != 120 || got.Exp != 3400 {
		t.Errorf("Expected coins 120 / exp 3400, got %d / %d", got.Coins, got.Exp)
	}
	if got.IsBanned {
		t.Error("Expected is_banned to default to false")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be stamped on create")
	}
}

func TestModelsUserNotFound(t *testing.T) {
	orm := newModelDB(t)

	err := orm.First(&User{}, "user_id = ?", int64(404)).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}
}

func TestModelsAchievementNameUnique(t *testing.T) {
	orm := newModelDB(t)

	first := Achievement{Name: "first-blood", Description: "Win once", Rarity: "common"}
	if err := orm.Create(&first).Error; err != nil {
		t.Fatalf("Failed to create achievement: %v", err)
	}

	dup := Achievement{Name: "first-blood", Description: "Different text", Rarity: "rare"}
	if err := orm.Create(&dup).Error; err == nil {
		t.Error("Expected a unique constraint violation for a duplicate name")
	}
}

func TestModelsUserAchievementCompositeKey(t *testing.T) {
	orm := newModelDB(t)

	if err := orm.Create(&User{UserID: 7}).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	ach := Achievement{Name: "night-owl", Description: "Awake at 3am"}
	if err := orm.Create(&ach).Error; err != nil {
		t.Fatalf("Failed to create achievement: %v", err)
	}

	unlock := UserAchievement{UserID: 7, AchievementID: ach.AchievementID, Progress: 100}
	if err := orm.Create(&unlock).Error; err != nil {
		t.Fatalf("Failed to create user achievement: %v", err)
	}
	if unlock.UnlockedAt.IsZero() {
		t.Error("Expected unlocked_at to be stamped on create")
	}

	again := UserAchievement{UserID: 7, AchievementID: ach.AchievementID}
	if err := orm.Create(&again).Error; err == nil {
		t.Error("Expected a duplicate composite key to be rejected")
	}
}

func TestModelsCommandUsageStampsExecutedAt(t *testing.T) {
	orm := newModelDB(t)

	before := time.Now().Add(-time.Second)
	usage := CommandUsage{UserID: 9, CommandName: "ping"}
	if err := orm.Create(&usage).Error; err != nil {
		t.Fatalf("Failed to create command usage: %v", err)
	}

	if usage.UsageID == 0 {
		t.Error("Expected an autoincremented usage_id")
	}
	if usage.ExecutedAt.Before(before) {
		t.Errorf("Expected executed_at to be stamped, got %v", usage.ExecutedAt)
	}
}
