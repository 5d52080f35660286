package resilient

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rampartdb/rampart/consts"
	"github.com/rampartdb/rampart/db"
	"github.com/rampartdb/rampart/helpers"
)

// UpsertUser creates the row for a platform user ID or updates the fields
// that are present; nil fields keep their stored values. Returns the row
// as stored.
func (rd *ResilientDatabase) UpsertUser(ctx context.Context, userID int64, nickname, timezone *string, birthday *time.Time) (*db.User, error) {
	var user db.User

	// Free-form chat text can carry NUL bytes, which Postgres text columns
	// reject.
	if nickname != nil {
		clean := helpers.SanitizeUTF8(*nickname)
		nickname = &clean
	}

	result := rd.WithSession(ctx, func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", userID).First(&user).Error
		switch {
		case err == nil:
			updates := map[string]any{}
			if nickname != nil {
				updates["nickname"] = *nickname
			}
			if timezone != nil {
				updates["timezone"] = *timezone
			}
			if birthday != nil {
				updates["birthday"] = *birthday
			}
			if len(updates) == 0 {
				return nil
			}
			return tx.Model(&user).Updates(updates).Error

		case errors.Is(err, gorm.ErrRecordNotFound):
			user = db.User{
				UserID:   userID,
				Nickname: nickname,
				Timezone: timezone,
				Birthday: birthday,
			}
			return tx.Create(&user).Error

		default:
			return err
		}
	})
	if result.Failed() {
		return nil, result.Err
	}

	return &user, nil
}

// GetUser loads a user by platform ID. Returns consts.ErrUserNotFound when
// no row exists.
func (rd *ResilientDatabase) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	var user db.User

	result := rd.WithSession(ctx, func(tx *gorm.DB) error {
		return tx.Where("user_id = ?", userID).First(&user).Error
	})
	if result.Failed() {
		if errors.Is(result.Err, gorm.ErrRecordNotFound) {
			return nil, consts.ErrUserNotFound
		}
		return nil, result.Err
	}

	return &user, nil
}

// TouchUserSeen stamps the user's last-seen time, creating the row when
// the user has never been recorded.
func (rd *ResilientDatabase) TouchUserSeen(ctx context.Context, userID int64, seenAt time.Time) error {
	result := rd.WithSession(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&db.User{}).Where("user_id = ?", userID).Update("last_seen_at", seenAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Create(&db.User{UserID: userID, LastSeenAt: &seenAt}).Error
		}
		return nil
	})
	if result.Failed() {
		return result.Err
	}

	return nil
}

// RecordCommandUsage appends one command invocation to the usage log.
// errorMessage is nil for successful invocations.
func (rd *ResilientDatabase) RecordCommandUsage(ctx context.Context, userID int64, commandName string, guildID *int64, errorMessage *string) error {
	if errorMessage != nil {
		clean := helpers.SanitizeUTF8(*errorMessage)
		errorMessage = &clean
	}

	usage := db.CommandUsage{
		UserID:       userID,
		CommandName:  commandName,
		GuildID:      guildID,
		ErrorMessage: errorMessage,
	}

	result := rd.WithSession(ctx, func(tx *gorm.DB) error {
		return tx.Create(&usage).Error
	})
	if result.Failed() {
		return result.Err
	}

	return nil
}

// GrantAchievement unlocks an achievement for a user and credits its coin
// and exp rewards atomically. Granting an achievement the user already
// holds is a no-op and never double-credits. Returns the catalog entry, or
// consts.ErrAchievementNotFound when it does not exist.
func (rd *ResilientDatabase) GrantAchievement(ctx context.Context, userID int64, achievementID uint) (*db.Achievement, error) {
	var achievement db.Achievement

	result := rd.WithSessionTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&achievement, achievementID).Error; err != nil {
			return err
		}

		grant := db.UserAchievement{UserID: userID, AchievementID: achievementID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already unlocked.
			return nil
		}

		if achievement.CoinReward == 0 && achievement.ExpReward == 0 {
			return nil
		}
		return tx.Model(&db.User{}).Where("user_id = ?", userID).Updates(map[string]any{
			"coins": gorm.Expr("coins + ?", achievement.CoinReward),
			"exp":   gorm.Expr("exp + ?", achievement.ExpReward),
		}).Error
	})
	if result.Failed() {
		if errors.Is(result.Err, gorm.ErrRecordNotFound) {
			return nil, consts.ErrAchievementNotFound
		}
		return nil, result.Err
	}

	return &achievement, nil
}

// UserAchievements lists the achievements a user has unlocked, newest
// first.
func (rd *ResilientDatabase) UserAchievements(ctx context.Context, userID int64) ([]db.UserAchievement, error) {
	var grants []db.UserAchievement

	result := rd.WithSession(ctx, func(tx *gorm.DB) error {
		return tx.Where("user_id = ?", userID).Order("unlocked_at DESC").Find(&grants).Error
	})
	if result.Failed() {
		return nil, result.Err
	}

	return grants, nil
}
