package telegram

import (
	"github.com/go-telegram/bot/models"

	"tg_notify_relay_bot/internal/domain"
)

// groupButtonsPerRow bounds keyboard width so long group lists stay readable.
const groupButtonsPerRow = 3

// groupKeyboard lays the user's groups out as callback buttons, three per
// row. The callback data is the group title itself.
func groupKeyboard(groups []domain.Group) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for i, group := range groups {
		if i%groupButtonsPerRow == 0 {
			rows = append(rows, nil)
		}

		rows[len(rows)-1] = append(rows[len(rows)-1], models.InlineKeyboardButton{
			Text:         group.Title,
			CallbackData: group.Title,
		})
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// roleKeyboard offers the three assignable roles on one row. The callback
// data carries the stored role value, not the display label.
func roleKeyboard() *models.InlineKeyboardMarkup {
	roles := []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleOperator}

	row := make([]models.InlineKeyboardButton, 0, len(roles))
	for _, role := range roles {
		row = append(row, models.InlineKeyboardButton{
			Text:         role.Label(),
			CallbackData: string(role),
		})
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{row},
	}
}

func forceReply() *models.ForceReply {
	return &models.ForceReply{ForceReply: true, Selective: true}
}
