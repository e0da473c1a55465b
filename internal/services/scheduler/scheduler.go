// Package scheduler рассылает напоминания об окончании пробного периода и годового плана.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	"github.com/magabrotheeeer/clearride/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
)

const (
	day       = 24 * time.Hour
	markerTTL = 3 * day
)

// AccountRepository поиск учётных записей с заканчивающимся окном тарифа.
type AccountRepository interface {
	FindSubscriptionsEndingBetween(ctx context.Context, subType models.SubscriptionType, from, to time.Time) ([]models.ReminderInfo, error)
}

// Publisher публикация сообщений в брокер.
type Publisher interface {
	Publish(exchange, routingKey string, message any) error
}

// Deduplicator отметка уже отправленных напоминаний.
type Deduplicator interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Reminder сообщение, которое уходит в очередь напоминаний.
type Reminder struct {
	models.ReminderInfo
	Kind string `json:"kind"`
}

type job struct {
	kind       string
	subType    models.SubscriptionType
	routingKey string
	dayOffset  int
}

var jobs = []job{
	{kind: "trial_ends_today", subType: models.SubscriptionFreeTrial, routingKey: rabbitmq.RoutingSubscriptionExpired, dayOffset: 0},
	{kind: "annual_plan_ends_tomorrow", subType: models.SubscriptionAnnualPlan, routingKey: rabbitmq.RoutingSubscriptionExpiring, dayOffset: 1},
}

// SchedulerService периодически ищет заканчивающиеся окна и публикует напоминания.
type SchedulerService struct {
	repo      AccountRepository
	publisher Publisher
	dedup     Deduplicator
	clock     clock.Clock
	log       *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService. dedup может быть nil.
func NewSchedulerService(repo AccountRepository, publisher Publisher, dedup Deduplicator, clk clock.Clock, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:      repo,
		publisher: publisher,
		dedup:     dedup,
		clock:     clk,
		log:       log,
	}
}

// Run выполняет проход сразу и затем каждые interval до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context, interval time.Duration) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход и возвращает число опубликованных напоминаний.
func (s *SchedulerService) RunOnce(ctx context.Context) int {
	startOfDay := s.clock.Now().UTC().Truncate(day)
	published := 0
	for _, j := range jobs {
		published += s.runJob(ctx, j, startOfDay)
	}
	return published
}

func (s *SchedulerService) runJob(ctx context.Context, j job, startOfDay time.Time) int {
	log := s.log.With(slog.String("job", j.kind))
	from := startOfDay.Add(time.Duration(j.dayOffset) * day)
	to := from.Add(day)

	infos, err := s.repo.FindSubscriptionsEndingBetween(ctx, j.subType, from, to)
	if err != nil {
		log.Error("failed to find accounts", sl.Err(err))
		return 0
	}
	if len(infos) == 0 {
		log.Debug("no accounts to remind")
		return 0
	}

	published := 0
	for _, info := range infos {
		key, first := s.firstTime(ctx, log, j, info)
		if !first {
			continue
		}
		if err := s.publisher.Publish(rabbitmq.NotificationsExchange, j.routingKey, Reminder{ReminderInfo: info, Kind: j.kind}); err != nil {
			log.Error("failed to publish reminder", slog.String("account_id", info.AccountID), sl.Err(err))
			s.unmark(ctx, log, key, info)
			continue
		}
		published++
	}
	log.Info("reminders published", slog.Int("found", len(infos)), slog.Int("published", published))
	return published
}

// firstTime сообщает, что напоминание по этому окну ещё не отправлялось.
// При недоступном хранилище меток напоминание отправляется, ключ тогда пустой.
func (s *SchedulerService) firstTime(ctx context.Context, log *slog.Logger, j job, info models.ReminderInfo) (string, bool) {
	if s.dedup == nil {
		return "", true
	}
	key := fmt.Sprintf("reminder:%s:%s:%s", j.kind, info.AccountID, info.EndDate.UTC().Format("2006-01-02"))
	first, err := s.dedup.MarkOnce(ctx, key, markerTTL)
	if err != nil {
		log.Warn("failed to mark reminder", slog.String("account_id", info.AccountID), sl.Err(err))
		return "", true
	}
	return key, first
}

// unmark снимает метку неотправленного напоминания, чтобы следующий проход повторил его.
func (s *SchedulerService) unmark(ctx context.Context, log *slog.Logger, key string, info models.ReminderInfo) {
	if key == "" {
		return
	}
	if err := s.dedup.Invalidate(ctx, key); err != nil {
		log.Warn("failed to unmark reminder", slog.String("account_id", info.AccountID), sl.Err(err))
	}
}
