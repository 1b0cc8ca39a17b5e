package services

import (
	"time"

	"ride-pricing/internal/config"
	"ride-pricing/internal/logger"
)

// Множители по умолчанию
const (
	DefaultNightMultiplier = 1.5
	DefaultPeakMultiplier  = 1.3
)

// SurgeClock сопоставляет момент времени упрощённому множителю спроса
type SurgeClock struct {
	NightMultiplier float64
	PeakMultiplier  float64
	Location        *time.Location // часовой пояс, в котором считаются час и день недели
}

// NewSurgeClock создает SurgeClock с множителями по умолчанию в указанном часовом поясе
func NewSurgeClock(loc *time.Location) *SurgeClock {
	if loc == nil {
		loc = time.UTC
	}
	return &SurgeClock{
		NightMultiplier: DefaultNightMultiplier,
		PeakMultiplier:  DefaultPeakMultiplier,
		Location:        loc,
	}
}

// NewSurgeClockFromConfig создает SurgeClock из конфигурации тарифа.
// Неизвестный часовой пояс заменяется на UTC с предупреждением в логе.
func NewSurgeClockFromConfig(cfg *config.PricingConfig, log *logger.Logger) *SurgeClock {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.WithError(err).WithField("timezone", cfg.Timezone).Warn("Unknown pricing timezone, falling back to UTC")
		loc = time.UTC
	}
	return &SurgeClock{
		NightMultiplier: cfg.NightMultiplier,
		PeakMultiplier:  cfg.PeakMultiplier,
		Location:        loc,
	}
}

// Multiplier возвращает множитель для момента t. Правила проверяются по порядку:
// ночь [0,6) в любой день; вечерний час пик [18,21) в будни;
// вечер пятницы и субботы (час >= 20 или < 2); иначе 1.0.
func (c *SurgeClock) Multiplier(t time.Time) float64 {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	hour := local.Hour()
	day := local.Weekday()

	if hour < 6 {
		return c.NightMultiplier
	}
	if day >= time.Monday && day <= time.Friday && hour >= 18 && hour < 21 {
		return c.PeakMultiplier
	}
	if (day == time.Friday || day == time.Saturday) && (hour >= 20 || hour < 2) {
		return c.PeakMultiplier
	}
	return 1.0
}

// NextChange возвращает ближайший момент после t, когда множитель меняется.
// Правила меняются только на границе часа, поэтому проверяются начала часов в пределах недели.
// Если множитель постоянен, возвращается t плюс неделя.
func (c *SurgeClock) NextChange(t time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	current := c.Multiplier(t)
	hourStart := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)

	for i := 1; i <= 7*24; i++ {
		boundary := hourStart.Add(time.Duration(i) * time.Hour)
		if c.Multiplier(boundary) != current {
			return boundary
		}
	}
	return t.Add(7 * 24 * time.Hour)
}
