package handlers

import (
	"net/http"

	"ride-pricing/internal/apperror"
	"ride-pricing/internal/logger"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindValidation: http.StatusBadRequest,
	apperror.KindNotFound:   http.StatusNotFound,
	apperror.KindConflict:   http.StatusConflict,
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ.
// Сообщения типизированных ошибок безопасны для клиента, остальные скрываются за internalMessage.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	if status, ok := kindStatus[apperror.KindOf(err)]; ok {
		writeErrorResponse(w, status, err.Error())
		return
	}
	if log != nil {
		log.WithError(err).Error(internalMessage)
	}
	writeErrorResponse(w, http.StatusInternalServerError, internalMessage)
}
