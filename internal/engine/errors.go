package engine

import (
	"context"
	"errors"

	"github.com/tatianab/inner-city/internal/api"
)

// Validation errors. They are returned before any request is sent and leave
// the store untouched apart from the notice.
var (
	ErrEmptyDistrict      = errors.New("не выбран квартал")
	ErrEmptyEmotion       = errors.New("назови эмоцию")
	ErrIntensityRange     = errors.New("интенсивность должна быть от 1 до 10")
	ErrEmptyMessage       = errors.New("пустое сообщение")
	ErrSessionActive      = errors.New("сессия уже идёт")
	ErrInsufficientEffort = errors.New("недостаточно Effort")
	ErrUnknownCard        = errors.New("карта недоступна для открытия")
	ErrCardNotOwned       = errors.New("карта не в собственности")
	ErrCardNotEquipped    = errors.New("карта не экипирована")
	ErrBusy               = errors.New("действие уже выполняется")
	ErrNoBoss             = errors.New("босса сейчас нет")
	ErrGuruLocked         = errors.New("режим ГУРУ ещё не разблокирован")
	ErrEmptyQuestion      = errors.New("вопрос не может быть пустым")
)

const (
	offlineText  = "Сервер недоступен. Проверь соединение."
	canceledText = "Запрос отменён."
)

// userMessage turns err into the text shown in a notice.
func userMessage(err error) string {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case api.IsOffline(err):
		return offlineText
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return canceledText
	}
	return err.Error()
}
