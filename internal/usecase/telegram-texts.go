package usecase

import "github.com/iamvkosarev/ai-widget-builder/pkg/local"

var (
	MessageServerError = local.NewSet(
		"Something wrong with me. Try later",
		local.NewTrans(local.Rus, "Что-то пошло не так. Попробуйте позже"),
	)
	MessageUserNoAccess = local.NewSet(
		"You are not allowed to use this bot",
		local.NewTrans(local.Rus, "У вас нет доступа к этому боту"),
	)
	MessageCommandStart = local.NewSet(
		"Describe a widget and I will build it as a single HTML file. Send follow-up messages to change it. /help lists the commands.",
		local.NewTrans(local.Rus, "Опишите виджет, и я соберу его в один HTML файл. Пишите следующие сообщения, чтобы его изменить. /help покажет команды."),
	)
	MessageCommandHelp = local.NewSet(
		"/new [title] start over, optionally naming the widget\n/ask toggle questions before the first build\n/cancel stop the current generation\n/fix spend one more fix round on remaining issues\n/retry repeat the last failed request\n/checkpoints list saved versions\n/restore N switch to version N\n/errors ask to fix errors reported by the preview",
		local.NewTrans(local.Rus, "/new [название] начать заново, можно сразу задать название\n/ask вопросы перед первой сборкой\n/cancel остановить генерацию\n/fix ещё один раунд исправлений\n/retry повторить неудачный запрос\n/checkpoints список версий\n/restore N вернуться к версии N\n/errors исправить ошибки из превью"),
	)
	MessageCommandUnknown = local.NewSet(
		"I don't know that command",
		local.NewTrans(local.Rus, "Я не знаю такой команды"),
	)
	MessageStartedOver = local.NewSet(
		"Started over. Describe a new widget.",
		local.NewTrans(local.Rus, "Начинаем заново. Опишите новый виджет."),
	)
	MessageAskFirstOn = local.NewSet(
		"I will ask a few questions before the first build.",
		local.NewTrans(local.Rus, "Перед первой сборкой я задам несколько вопросов."),
	)
	MessageAskFirstOff = local.NewSet(
		"I will build right away.",
		local.NewTrans(local.Rus, "Буду собирать сразу."),
	)
	MessageCancelled = local.NewSet(
		"Generation cancelled",
		local.NewTrans(local.Rus, "Генерация отменена"),
	)
	MessageNothingToCancel = local.NewSet(
		"Nothing is being generated",
		local.NewTrans(local.Rus, "Сейчас ничего не генерируется"),
	)
	MessageBusy = local.NewSet(
		"Wait until the current generation finishes or /cancel it",
		local.NewTrans(local.Rus, "Дождитесь окончания генерации или отмените её через /cancel"),
	)
	MessageNoExtraFix = local.NewSet(
		"There is nothing left to fix",
		local.NewTrans(local.Rus, "Исправлять больше нечего"),
	)
	MessageNothingToRetry = local.NewSet(
		"There is no failed request to retry",
		local.NewTrans(local.Rus, "Нет неудачного запроса для повтора"),
	)
	MessageNoSandboxErrors = local.NewSet(
		"The preview has not reported any errors",
		local.NewTrans(local.Rus, "Превью не сообщало об ошибках"),
	)
	MessageNoCheckpoints = local.NewSet(
		"No versions yet",
		local.NewTrans(local.Rus, "Версий пока нет"),
	)
	MessageRestoreUsage = local.NewSet(
		"Usage: /restore N, where N is a number from /checkpoints",
		local.NewTrans(local.Rus, "Использование: /restore N, где N номер из /checkpoints"),
	)
	MessageRestoredFormat = local.NewSet(
		"Restored version %d: %s",
		local.NewTrans(local.Rus, "Восстановлена версия %d: %s"),
	)
	MessageGenerationFailedFormat = local.NewSet(
		"Generation failed: %s\nUse /retry to try again.",
		local.NewTrans(local.Rus, "Ошибка генерации: %s\nИспользуйте /retry, чтобы повторить."),
	)
	MessageNoCode = local.NewSet(
		"The model answered without usable code. Try rephrasing the request.",
		local.NewTrans(local.Rus, "Модель ответила без пригодного кода. Попробуйте переформулировать запрос."),
	)
	MessagePassedFormat = local.NewSet(
		"Widget ready, score %d/10",
		local.NewTrans(local.Rus, "Виджет готов, оценка %d/10"),
	)
	MessageUnverified = local.NewSet(
		"Widget built, the quality check was unavailable",
		local.NewTrans(local.Rus, "Виджет собран, проверка качества недоступна"),
	)
	MessageIssuesRemainingFormat = local.NewSet(
		"Widget built with %d unresolved issues, score %d/10",
		local.NewTrans(local.Rus, "Виджет собран, нерешённых проблем: %d, оценка %d/10"),
	)
	MessageCanFixMore = local.NewSet(
		"Use /fix to spend one more round on them.",
		local.NewTrans(local.Rus, "Используйте /fix для ещё одного раунда исправлений."),
	)
	MessagePreviewFormat = local.NewSet(
		"Preview: %s",
		local.NewTrans(local.Rus, "Превью: %s"),
	)
	MessageSandboxErrorsFormat = local.NewSet(
		"Fixing %d errors reported by the preview",
		local.NewTrans(local.Rus, "Исправляю ошибки из превью: %d"),
	)
	MessageProgressStreamFormat = local.NewSet(
		"%s, round %d, %d characters received",
		local.NewTrans(local.Rus, "%s, раунд %d, получено символов: %d"),
	)
	MessageProgressCritiqueFormat = local.NewSet(
		"Checking quality, round %d",
		local.NewTrans(local.Rus, "Проверяю качество, раунд %d"),
	)
	MessageProgressCheckpointFormat = local.NewSet(
		"Round %d checked: score %d/10, %d issues to fix",
		local.NewTrans(local.Rus, "Раунд %d проверен: оценка %d/10, проблем: %d"),
	)
	MessageStateClarifying = local.NewSet(
		"Thinking about questions",
		local.NewTrans(local.Rus, "Подбираю вопросы"),
	)
	MessageStateBuilding = local.NewSet(
		"Building",
		local.NewTrans(local.Rus, "Собираю"),
	)
	MessageStateRefining = local.NewSet(
		"Refining",
		local.NewTrans(local.Rus, "Дорабатываю"),
	)
	MessageStateFixing = local.NewSet(
		"Fixing issues",
		local.NewTrans(local.Rus, "Исправляю проблемы"),
	)
)
