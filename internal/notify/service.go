package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"boxbook/internal/logger"
	"boxbook/internal/metrics"
	"boxbook/internal/schedule"
	"boxbook/internal/user"
)

const (
	queueKey       = "notifications"
	failedQueueKey = "notifications:failed"
	maxTries       = 3
)

const (
	TypeWaitlistPromoted = "waitlist_promoted"
	TypeWaitlistDropped  = "waitlist_dropped"
)

type Event struct {
	Type    string    `json:"type"`
	UserID  int       `json:"user_id"`
	ClassID int       `json:"class_id"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Service queues waitlist events in redis and drains them into SMTP
// from a background worker. Enqueue failures are logged and swallowed
// so the booking path never blocks on delivery.
type Service struct {
	redis    *redis.Client
	users    user.Repository
	classes  schedule.Repository
	from     string
	fromName string
	smtpHost string
	smtpPort string
	smtpUser string
	smtpPass string
}

func New(users user.Repository, classes schedule.Repository, fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass, redisAddr string) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
		users:    users,
		classes:  classes,
		from:     fromEmail,
		fromName: fromName,
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		smtpUser: smtpUser,
		smtpPass: smtpPass,
	}
}

func (s *Service) WaitlistPromoted(ctx context.Context, userID, classID int) {
	s.enqueue(ctx, Event{Type: TypeWaitlistPromoted, UserID: userID, ClassID: classID, Created: time.Now()})
}

func (s *Service) WaitlistDropped(ctx context.Context, userID, classID int) {
	s.enqueue(ctx, Event{Type: TypeWaitlistDropped, UserID: userID, ClassID: classID, Created: time.Now()})
}

func (s *Service) enqueue(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to marshal notification", "type", ev.Type, "error", err)
		return
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		logger.Error("failed to queue notification", "type", ev.Type, "user_id", ev.UserID, "error", err)
		metrics.RecordNotification(ev.Type, "queue_error")
		return
	}

	metrics.NotifyQueueLength.Inc()
	logger.Info("notification queued", "type", ev.Type, "user_id", ev.UserID, "class_id", ev.ClassID)
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("notification worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("notification worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}
	metrics.NotifyQueueLength.Dec()

	var ev Event
	if err := json.Unmarshal([]byte(result[1]), &ev); err != nil {
		logger.Error("bad notification payload", "error", err)
		return
	}

	ev.Tries++
	if err := s.deliver(ctx, ev); err != nil {
		logger.Error("failed to deliver notification", "type", ev.Type, "user_id", ev.UserID, "attempt", ev.Tries, "error", err)

		if ev.Tries < maxTries {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(ev)
			s.redis.LPush(context.Background(), queueKey, data)
			metrics.NotifyQueueLength.Inc()
		} else {
			s.saveFailed(ev, err)
			metrics.RecordNotification(ev.Type, "failed")
		}
		return
	}

	metrics.RecordNotification(ev.Type, "sent")
	logger.Info("notification sent", "type", ev.Type, "user_id", ev.UserID)
}

func (s *Service) deliver(ctx context.Context, ev Event) error {
	u, err := s.users.FindByID(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	class, err := s.classes.GetClassInstance(ctx, ev.ClassID)
	if err != nil {
		return fmt.Errorf("resolve class: %w", err)
	}

	subject, body := s.compose(ev, u, class)
	return s.sendNow(u.Email, subject, body)
}

func (s *Service) compose(ev Event, u *user.User, class *schedule.ClassInstance) (subject, body string) {
	when := class.StartTime.Format("Jan 2, 2006 at 3:04 PM")

	switch ev.Type {
	case TypeWaitlistPromoted:
		subject = "You're in! Spot opened in " + string(class.ClassType)
		body = fmt.Sprintf(`Hi %s,

A spot opened up and you've been moved off the waitlist:

Class: %s
Time: %s
Zone: %s

See you at the box!

- BoxBook Team`, u.Name, class.ClassType, when, class.ZoneName)
	case TypeWaitlistDropped:
		subject = "Waitlist update for " + string(class.ClassType)
		body = fmt.Sprintf(`Hi %s,

We couldn't move you off the waitlist for this class:

Class: %s
Time: %s

Your booking no longer meets your plan's conditions (or you are out of credits), so it has been released. No credits were taken.

- BoxBook Team`, u.Name, class.ClassType, when)
	default:
		subject = "BoxBook notification"
		body = fmt.Sprintf("Hi %s,\n\nThere is an update on one of your bookings.\n\n- BoxBook Team", u.Name)
	}

	return subject, body
}

func (s *Service) sendNow(to, subject, body string) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "\r\n" + body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message))
}

func (s *Service) saveFailed(ev Event, cause error) {
	failed := map[string]interface{}{
		"event": ev,
		"error": cause.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, data)
	logger.Error("notification moved to failed queue", "type", ev.Type, "user_id", ev.UserID)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}
