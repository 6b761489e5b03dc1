// Package student содержит доменную модель ученика и движок прогресса.
//
// Пакет определяет:
//
//   - Student: агрегат ученика, владеющий навыками (map по коду навыка)
//   - SkillProgress: прогресс по одному навыку (score 0..100, lessons_completed)
//   - Правила прогресса: streak, сглаживание оценок, повышение уровня
//   - Repository: контракт хранилища, реализация в infrastructure/persistence
//
// # Правила прогресса
//
// Streak обновляется один раз на каждый контакт ученика (RecordContact).
// Оценки навыков сглаживаются экспоненциально (ApplyScores):
//
//	new = floor(old*0.7 + score*0.3)
//
// Повышение уровня (TryLevelUp) требует среднего балла >= 75 и
// как минимум 10 уроков на текущем уровне. После повышения все баллы
// снижаются на 20, чтобы ученик не начинал новый уровень с максимумом.
//
// Пакет не зависит от инфраструктуры: время передаётся явно, уровни берутся
// из catalog.Catalog.
package student
