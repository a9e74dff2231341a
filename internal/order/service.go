package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campus_market/internal/apperr"
	"campus_market/internal/auth"
	"campus_market/internal/model"
	"campus_market/internal/notify"
	"campus_market/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// listLimit 订单列表单次最多返回条数
	listLimit = 100
	// maxItemQuantity 单个商品单次最多购买份数
	maxItemQuantity = 100
)

// Notifier 通知投递；失败只记日志，不回滚订单。
type Notifier interface {
	Notify(ctx context.Context, m notify.Message) error
}

// EventPublisher 订单事件出口（Redis Stream outbox）。
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.OrderEvent) error
}

type Service struct {
	db       *gorm.DB
	notifier Notifier
	events   EventPublisher
	log      *slog.Logger

	otp func() (string, error)
	now func() time.Time
}

func NewService(db *gorm.DB, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		db:       db,
		notifier: notifier,
		log:      log,
		otp:      GenerateOTP,
		now:      time.Now,
	}
}

// WithEvents 开启订单事件发布；不调用则不发事件。
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

type ItemRequest struct {
	ProductID string          `json:"productId" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,gt=0,max=100"`
	Price     decimal.Decimal `json:"price"`
}

type CreateRequest struct {
	ShopID          string        `json:"shopId" binding:"required"`
	CollegeID       string        `json:"collegeId" binding:"required"`
	HostelBranch    string        `json:"hostelBranch" binding:"max=128"`
	RollNo          *string       `json:"rollNo" binding:"omitempty,max=64"`
	PaymentProofURL string        `json:"paymentProofUrl" binding:"required,max=512"`
	Items           []ItemRequest `json:"items" binding:"required,min=1,dive"`
}

// validate 字段级校验，HTTP 绑定之外再兜一层，service 也可直接调用。
func (r CreateRequest) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(r.ShopID) == "" {
		fields["shopId"] = "required"
	}
	if strings.TrimSpace(r.CollegeID) == "" {
		fields["collegeId"] = "required"
	}
	if strings.TrimSpace(r.PaymentProofURL) == "" {
		fields["paymentProofUrl"] = "required"
	}
	if len(r.Items) == 0 {
		fields["items"] = "must contain at least one item"
	}
	for i, it := range r.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			fields[fmt.Sprintf("items[%d].productId", i)] = "required"
		}
		switch {
		case it.Quantity <= 0:
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than 0"
		case it.Quantity > maxItemQuantity:
			fields[fmt.Sprintf("items[%d].quantity", i)] = fmt.Sprintf("must be at most %d", maxItemQuantity)
		}
		if !it.Price.IsPositive() {
			fields[fmt.Sprintf("items[%d].price", i)] = "must be greater than 0"
		}
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

// CreateOrder 学生下单：校验店铺、商品与校区后落库，随后通知店主。
func (s *Service) CreateOrder(ctx context.Context, sess auth.Session, req CreateRequest) (*model.Order, error) {
	if err := auth.RequireStudent(sess); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if sess.CollegeID == "" {
		return nil, apperr.Field("collegeId", "student profile has no college")
	}
	if req.CollegeID != sess.CollegeID {
		return nil, apperr.Forbidden("collegeId does not match your college")
	}

	db := s.db.WithContext(ctx)

	var shop model.Shop
	if err := db.First(&shop, "id = ?", req.ShopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Field("shopId", "shop not found")
		}
		return nil, fmt.Errorf("load shop: %w", err)
	}
	if !shop.IsApproved || shop.IsBanned {
		return nil, apperr.Field("shopId", "shop is not accepting orders")
	}
	var served int64
	if err := db.Model(&model.ShopCollege{}).
		Where("shop_id = ? AND college_id = ?", shop.ID, req.CollegeID).
		Count(&served).Error; err != nil {
		return nil, fmt.Errorf("check shop college: %w", err)
	}
	if served == 0 {
		return nil, apperr.Field("shopId", "shop does not serve your college")
	}

	ids := make([]string, 0, len(req.Items))
	seen := make(map[string]struct{}, len(req.Items))
	for _, it := range req.Items {
		if _, ok := seen[it.ProductID]; !ok {
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}
	}
	var products []model.Product
	if err := db.Where("id IN ? AND shop_id = ?", ids, shop.ID).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	fields := map[string]string{}
	items := make([]model.OrderItem, 0, len(req.Items))
	total := decimal.Zero
	for i, it := range req.Items {
		p, ok := byID[it.ProductID]
		if !ok || p.IsBanned {
			fields[fmt.Sprintf("items[%d].productId", i)] = "product is not available in this shop"
			continue
		}
		// 客户端提交的价格必须与当前售价一致，避免前端篡改
		if !it.Price.Equal(p.Price) {
			fields[fmt.Sprintf("items[%d].price", i)] = "price has changed, refresh and try again"
			continue
		}
		line := model.OrderItem{ProductID: p.ID, Quantity: it.Quantity, Price: it.Price}
		total = total.Add(line.Subtotal())
		items = append(items, line)
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	otp, err := s.otp()
	if err != nil {
		return nil, err
	}
	o := model.Order{
		StudentID:       sess.StudentID,
		ShopID:          shop.ID,
		CollegeID:       sess.CollegeID,
		Status:          model.StatusPendingAccept,
		TotalAmount:     total,
		DeliveryOTP:     otp,
		PaymentProofURL: strings.TrimSpace(req.PaymentProofURL),
		HostelBranch:    strings.TrimSpace(req.HostelBranch),
		RollNo:          req.RollNo,
		Items:           items,
	}
	// 订单与明细同一事务写入
	if err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&o).Error
	}); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.notifyShopOwner(ctx, o)
	s.publish(ctx, queue.OrderEvent{
		EventID:     uuid.NewString(),
		OrderID:     o.ID,
		Type:        queue.EventOrderCreated,
		ToStatus:    o.Status,
		ActorUserID: sess.UserID,
		OccurredAt:  o.CreatedAt,
	})
	return &o, nil
}

// RequestTransition 店主推进订单状态。管理员不能代为操作。
func (s *Service) RequestTransition(ctx context.Context, sess auth.Session, orderID, target string) (*model.Order, error) {
	if err := auth.RequireShopOwner(sess); err != nil {
		return nil, err
	}
	return s.transition(ctx, sess.ShopID, sess.UserID, orderID, target)
}

// Transition 以店铺身份推进状态，不做会话校验（调用方已确认 actorShopID）。
func (s *Service) Transition(ctx context.Context, actorShopID, orderID, target string) (*model.Order, error) {
	return s.transition(ctx, actorShopID, "", orderID, target)
}

// transition 校验顺序：存在 → 归属 → 状态词表 → 状态边 → CAS 落库。
func (s *Service) transition(ctx context.Context, actorShopID, actorUserID, orderID, target string) (*model.Order, error) {
	db := s.db.WithContext(ctx)

	var o model.Order
	if err := db.Preload("Items").First(&o, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	if actorShopID == "" || o.ShopID != actorShopID {
		return nil, apperr.Forbidden("order belongs to another shop")
	}
	to, ok := ParseStatus(target)
	if !ok {
		return nil, apperr.InvalidStatus(fmt.Sprintf("unknown status %q", target))
	}
	if !CanTransition(o.Status, to) {
		return nil, apperr.InvalidTransition(fmt.Sprintf("cannot move order from %s to %s", o.Status, to))
	}

	from := o.Status
	now := s.now()
	if err := compareAndSetStatus(db, o.ID, from, to, now); err != nil {
		return nil, err
	}
	o.Status = to
	o.UpdatedAt = now

	s.notifyStudent(ctx, o)
	s.publish(ctx, queue.OrderEvent{
		EventID:     uuid.NewString(),
		OrderID:     o.ID,
		Type:        queue.EventOrderStatusChanged,
		FromStatus:  from,
		ToStatus:    to,
		ActorUserID: actorUserID,
		OccurredAt:  now,
	})
	return &o, nil
}

// compareAndSetStatus 仅当状态仍为 from 时更新，并发输家得到 Conflict。
func compareAndSetStatus(db *gorm.DB, orderID string, from, to model.OrderStatus, now time.Time) error {
	res := db.Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{"status": to, "updated_at": now})
	if res.Error != nil {
		return fmt.Errorf("update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("order status was changed by another request, reload and retry")
	}
	return nil
}

// Get 按归属返回单个订单视图。
func (s *Service) Get(ctx context.Context, sess auth.Session, orderID string) (View, error) {
	o, err := s.loadAuthorized(ctx, sess, orderID)
	if err != nil {
		return View{}, err
	}
	return NewView(o, sess), nil
}

// List 返回调用方可见的订单；role 为空时按会话角色推断。
func (s *Service) List(ctx context.Context, sess auth.Session, role string) ([]View, error) {
	if err := auth.RequireActive(sess); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Preload("Items").Order("created_at DESC").Limit(listLimit)

	switch model.Role(role) {
	case "":
		switch {
		case sess.Admin():
		case sess.Role == model.RoleStudent:
			q = q.Where("student_id = ?", sess.StudentID)
		case sess.Role == model.RoleShopOwner:
			q = q.Where("shop_id = ?", sess.ShopID)
		default:
			return nil, apperr.Forbidden("no order view for this account")
		}
	case model.RoleStudent:
		if err := auth.RequireStudent(sess); err != nil {
			return nil, err
		}
		q = q.Where("student_id = ?", sess.StudentID)
	case model.RoleShopOwner:
		if err := auth.RequireShopOwner(sess); err != nil {
			return nil, err
		}
		q = q.Where("shop_id = ?", sess.ShopID)
	case model.RoleAdmin:
		if err := auth.RequireAdmin(sess); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.Field("role", "must be one of student, shop_owner, admin")
	}

	var orders []model.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]View, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewView(o, sess))
	}
	return out, nil
}

// Timeline 返回事件消费者落下的状态时间线，按发生时间升序。
func (s *Service) Timeline(ctx context.Context, sess auth.Session, orderID string) ([]model.OrderStatusEvent, error) {
	if _, err := s.loadAuthorized(ctx, sess, orderID); err != nil {
		return nil, err
	}
	var events []model.OrderStatusEvent
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	return events, nil
}

func (s *Service) loadAuthorized(ctx context.Context, sess auth.Session, orderID string) (model.Order, error) {
	if err := auth.RequireActive(sess); err != nil {
		return model.Order{}, err
	}
	var o model.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&o, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Order{}, apperr.NotFound("order not found")
		}
		return model.Order{}, fmt.Errorf("load order: %w", err)
	}
	switch {
	case sess.Admin():
	case sess.Role == model.RoleStudent && sess.StudentID != "" && o.StudentID == sess.StudentID:
	case sess.Role == model.RoleShopOwner && sess.ShopID != "" && o.ShopID == sess.ShopID:
	default:
		return model.Order{}, apperr.Forbidden("order is not yours")
	}
	return o, nil
}

func (s *Service) notifyShopOwner(ctx context.Context, o model.Order) {
	var owner model.ShopOwner
	if err := s.db.WithContext(ctx).Where("shop_id = ?", o.ShopID).Limit(1).Find(&owner).Error; err != nil || owner.ID == "" {
		s.log.Warn("new order: shop owner not found", slog.String("order_id", o.ID), slog.Any("err", err))
		return
	}
	title, body := newOrderMessage(o.ID, o.TotalAmount)
	s.send(ctx, o.ID, notify.Message{UserID: owner.UserID, Title: title, Body: body, OrderID: o.ID})
}

func (s *Service) notifyStudent(ctx context.Context, o model.Order) {
	title, body, ok := statusMessage(o.Status, o.ID)
	if !ok {
		return
	}
	var st model.Student
	if err := s.db.WithContext(ctx).Where("id = ?", o.StudentID).Limit(1).Find(&st).Error; err != nil || st.ID == "" {
		s.log.Warn("status change: student not found", slog.String("order_id", o.ID), slog.Any("err", err))
		return
	}
	s.send(ctx, o.ID, notify.Message{UserID: st.UserID, Title: title, Body: body, OrderID: o.ID})
}

func (s *Service) send(ctx context.Context, orderID string, m notify.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, m); err != nil {
		s.log.Warn("notification failed", slog.String("order_id", orderID), slog.String("user_id", m.UserID), slog.Any("err", err))
	}
}

func (s *Service) publish(ctx context.Context, ev queue.OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish order event failed", slog.String("order_id", ev.OrderID), slog.String("type", ev.Type), slog.Any("err", err))
	}
}
