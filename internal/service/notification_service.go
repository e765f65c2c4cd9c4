package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadenza/backend/config"
	"cadenza/backend/internal/dto"
	"cadenza/backend/internal/model"
	"cadenza/backend/internal/repository"
)

// 单条通知投递的超时时间
const deliverTimeout = 30 * time.Second

// 每轮重试处理的最大条数
const retryBatchSize = 100

// NotificationService 通知服务：异步投递 + 失败重试 + 站内信
type NotificationService interface {
	Notifier
	// Start 启动投递 worker
	Start()
	// Stop 停止接收新通知并等待队列排空
	Stop(ctx context.Context) error
	// RetryFailed 重投失败的通知，返回本轮投递成功条数
	RetryFailed(ctx context.Context) (int, error)
	List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type notificationService struct {
	repo        *repository.Repository
	channels    []Channel
	queue       chan Message
	workers     int
	maxAttempts int
	logger      *zap.Logger

	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
	startOnce sync.Once
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, cfg *config.NotifyConfig, channels []Channel, logger *zap.Logger) NotificationService {
	return &notificationService{
		repo:        repo,
		channels:    channels,
		queue:       make(chan Message, cfg.QueueSize),
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.Named("notifier"),
	}
}

// ════════════════════════════════════════════════════════════
// 投递
// ════════════════════════════════════════════════════════════

func (s *notificationService) Notify(ctx context.Context, msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.logger.Warn("通知服务已停止，丢弃通知", zap.String("type", msg.Type))
		return
	}

	select {
	case s.queue <- msg:
	default:
		// 队列已满：后台写入失败状态的站内信，由重试任务补投；调用方不等待
		// wg.Add 在读锁内完成，Stop 置 closed 之后的 Wait 一定能看到它
		s.logger.Warn("通知队列已满，转为待重试", zap.String("type", msg.Type))
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.persistOnly(context.WithoutCancel(ctx), msg, "通知队列已满")
		}()
	}
}

func (s *notificationService) Start() {
	s.startOnce.Do(func() {
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go s.worker(i)
		}
		s.logger.Info("通知 worker 已启动", zap.Int("workers", s.workers), zap.Int("channels", len(s.channels)))
	})
}

func (s *notificationService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("通知 worker 已停止")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("等待通知队列排空超时: %w", ctx.Err())
	}
}

func (s *notificationService) worker(id int) {
	defer s.wg.Done()
	for msg := range s.queue {
		s.handle(id, msg)
	}
}

// handle 单条消息的 panic 不影响 worker 继续工作
func (s *notificationService) handle(worker int, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("通知投递 panic", zap.Int("worker", worker), zap.String("type", msg.Type), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	users, err := s.resolve(ctx, msg.Recipient)
	if err != nil {
		s.logger.Error("解析通知接收人失败", zap.String("type", msg.Type), zap.Any("recipient", msg.Recipient), zap.Error(err))
		return
	}
	for i := range users {
		user := &users[i]
		n, err := s.persist(ctx, user.UserID, msg, model.DeliveryPending, "")
		if err != nil {
			s.logger.Error("写入站内通知失败", zap.String("user_id", user.UserID), zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		s.push(ctx, n, user)
	}
}

// push 经外部渠道推送并回写投递状态
func (s *notificationService) push(ctx context.Context, n *model.Notification, user *model.User) bool {
	pref, err := s.repo.Notification.GetPreference(ctx, user.UserID)
	if err != nil {
		s.logger.Warn("查询通知偏好失败，按默认偏好处理", zap.String("user_id", user.UserID), zap.Error(err))
		pref = &model.NotificationPreference{UserID: user.UserID, SubstitutionNotification: true, TelegramEnabled: true}
	}

	n.Attempts++
	n.LastError = ""
	reached := false
	var lastErr error

	if pref.SubstitutionNotification {
		for _, ch := range s.channels {
			err := ch.Deliver(ctx, Delivery{User: user, Pref: pref, Title: n.Title, Content: n.Content})
			if errors.Is(err, ErrRecipientUnreachable) {
				continue
			}
			reached = true
			if err != nil {
				lastErr = fmt.Errorf("%s: %w", ch.Name(), err)
				s.logger.Warn("通知推送失败",
					zap.String("channel", ch.Name()),
					zap.String("notification_id", n.NotificationID),
					zap.Int("attempts", n.Attempts),
					zap.Error(err),
				)
			}
		}
	}

	switch {
	case lastErr != nil:
		n.DeliveryStatus = model.DeliveryFailed
		n.LastError = truncate(lastErr.Error(), 500)
	case reached:
		now := time.Now()
		n.DeliveryStatus = model.DeliveryDelivered
		n.DeliveredAt = &now
	default:
		n.DeliveryStatus = model.DeliverySkipped
	}

	if err := s.repo.Notification.UpdateDelivery(ctx, n); err != nil {
		s.logger.Error("回写投递状态失败", zap.String("notification_id", n.NotificationID), zap.Error(err))
	}
	return n.DeliveryStatus == model.DeliveryDelivered
}

// persistOnly 不经队列直接落库为 failed，等待重试任务
func (s *notificationService) persistOnly(ctx context.Context, msg Message, reason string) {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()

	users, err := s.resolve(ctx, msg.Recipient)
	if err != nil {
		s.logger.Error("解析通知接收人失败，通知丢弃", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	for _, u := range users {
		if _, err := s.persist(ctx, u.UserID, msg, model.DeliveryFailed, reason); err != nil {
			s.logger.Error("写入站内通知失败，通知丢弃", zap.String("user_id", u.UserID), zap.String("type", msg.Type), zap.Error(err))
		}
	}
}

func (s *notificationService) persist(ctx context.Context, userID string, msg Message, status, lastErr string) (*model.Notification, error) {
	title, content := render(msg)
	relatedType := "substitution_request"
	var relatedID *string
	if msg.Payload.RequestID != "" {
		id := msg.Payload.RequestID
		relatedID = &id
	}
	n := &model.Notification{
		UserID:         userID,
		Type:           msg.Type,
		Title:          title,
		Content:        content,
		RelatedType:    &relatedType,
		RelatedID:      relatedID,
		DeliveryStatus: status,
		LastError:      lastErr,
	}
	if err := s.repo.Notification.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// resolve 将接收方展开为用户列表
func (s *notificationService) resolve(ctx context.Context, r Recipient) ([]model.User, error) {
	switch {
	case r.UserID != "":
		u, err := s.repo.User.GetByID(ctx, r.UserID)
		if err != nil {
			return nil, err
		}
		return []model.User{*u}, nil
	case r.TeacherID != "":
		u, err := s.repo.User.GetByTeacherID(ctx, r.TeacherID)
		if err != nil {
			return nil, err
		}
		return []model.User{*u}, nil
	case r.Role != "":
		return s.repo.User.ListByRole(ctx, r.Role)
	default:
		return nil, errors.New("通知接收方为空")
	}
}

// ════════════════════════════════════════════════════════════
// 重试
// ════════════════════════════════════════════════════════════

func (s *notificationService) RetryFailed(ctx context.Context) (int, error) {
	list, err := s.repo.Notification.ListRetryable(ctx, s.maxAttempts, retryBatchSize)
	if err != nil {
		s.logger.Error("查询待重试通知失败", zap.Error(err))
		return 0, err
	}

	delivered := 0
	for i := range list {
		if ctx.Err() != nil {
			break
		}
		n := &list[i]
		user, err := s.repo.User.GetByID(ctx, n.UserID)
		if err != nil {
			s.logger.Warn("重试通知时查询用户失败", zap.String("notification_id", n.NotificationID), zap.Error(err))
			continue
		}
		if s.push(ctx, n, user) {
			delivered++
		}
	}

	if len(list) > 0 {
		s.logger.Info("通知重试完成", zap.Int("candidates", len(list)), zap.Int("delivered", delivered))
	}
	return delivered, nil
}

// ════════════════════════════════════════════════════════════
// 站内信
// ════════════════════════════════════════════════════════════

func (s *notificationService) List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	list, total, err := s.repo.Notification.ListByUser(ctx, userID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知列表失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.NotificationResponse, 0, len(list))
	for _, n := range list {
		result = append(result, dto.NotificationResponse{
			ID:             n.NotificationID,
			Type:           n.Type,
			Title:          n.Title,
			Content:        n.Content,
			IsRead:         n.IsRead,
			RelatedType:    n.RelatedType,
			RelatedID:      n.RelatedID,
			DeliveryStatus: n.DeliveryStatus,
			CreatedAt:      n.CreatedAt.Format(time.RFC3339),
		})
	}
	return result, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.repo.Notification.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("标记通知已读失败", zap.String("notification_id", id), zap.Error(err))
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
