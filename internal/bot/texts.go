package bot

// System texts: everything the bot says outside of the script file.
const (
	textUseButtons        = "Пожалуйста, используйте кнопки на клавиатуре."
	textStartFirst        = "Отправьте /start, чтобы начать."
	textBackToMenu        = "Вы в главном меню."
	textUnknownCommand    = "Неизвестная команда!"
	textUnknownAction     = "Неизвестное действие, попробуйте ещё раз."
	textStepNotFound      = "Сценарий сбился, отправьте /start."
	textSendReceipt       = "Отправьте фото или скан чека одним сообщением."
	textReceiptSent       = "Чек отправлен на проверку, ожидайте подтверждения."
	textReceiptSendFailed = "Не удалось переслать чек, попробуйте позже."
	textPaymentConfirmed  = "Оплата подтверждена!"
	textPaymentDeclined   = "Оплата не подтверждена. Свяжитесь с администратором."
	textClaimExpired      = "Проверка оплаты просрочена. Свяжитесь с администратором."
	textAdminOnly         = "Только администратор может использовать эту команду."
	textBroadcastPrompt   = "Отправьте текст рассылки одним сообщением."
	textEmptyBroadcast    = "Пустое сообщение рассылки, отмена."
)
