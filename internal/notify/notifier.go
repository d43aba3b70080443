package notify

import (
	"context"
	"fmt"
	"time"

	"sierraspos/internal/domain"
	applog "sierraspos/internal/log"
	"sierraspos/internal/repos"
)

// Settings is the key/value configuration the notifier reads at send time.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Bool(ctx context.Context, key string) bool
	List(ctx context.Context, key string) []string
}

// Notifier builds the transactional emails and hands them to the dispatcher.
type Notifier struct {
	render   Renderer
	disp     *Dispatcher
	settings Settings
	loc      *time.Location
}

func NewNotifier(r Renderer, d *Dispatcher, s Settings, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{render: r, disp: d, settings: s, loc: loc}
}

type saleView struct {
	Org         string
	SaleID      int64
	Date        string
	Seller      string
	FamilyID    int64
	FamilyName  string
	Method      string
	Lines       []domain.SaleLine
	Total       int64
	ShowBalance bool
	Balance     int64
	Copy        bool
}

type familyView struct {
	Org         string
	FamilyID    int64
	FamilyName  string
	Balance     int64
	Seller      string
	PaymentInfo string
}

type credentialsView struct {
	Org      string
	Name     string
	Username string
	Password string
}

// MethodLabel is the Spanish label printed on receipts.
func MethodLabel(m domain.PaymentMethod) string {
	switch m {
	case domain.PayCredit:
		return "Cuenta Familiar"
	case domain.PayCash:
		return "Efectivo"
	}
	return string(m)
}

func (n *Notifier) org(ctx context.Context) string {
	v, err := n.settings.Get(ctx, repos.SettingOrgName)
	if err != nil || v == "" {
		return "Sierras de Bellavista"
	}
	return v
}

func (n *Notifier) receiptMessage(ctx context.Context, s domain.Sale, isCopy bool) (Message, error) {
	subject := fmt.Sprintf("Boleta N°%d - Sierras", s.ID)
	if isCopy {
		subject = "Copia " + subject
	}
	html, err := n.render.Render(KindReceipt, saleView{
		Org:         n.org(ctx),
		SaleID:      s.ID,
		Date:        s.CreatedAt,
		Seller:      s.Seller,
		FamilyID:    s.FamilyID,
		FamilyName:  s.FamilyName,
		Method:      MethodLabel(s.Method),
		Lines:       s.Lines,
		Total:       s.Total,
		ShowBalance: n.settings.Bool(ctx, repos.SettingShowBalanceInReceipt),
		Balance:     s.BalanceAfter,
		Copy:        isCopy,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      s.FamilyEmail,
		Subject: subject,
		HTML:    html,
		Bcc:     n.settings.List(ctx, repos.SettingBccEmails),
	}, nil
}

// Receipt queues the receipt of a freshly committed sale.
func (n *Notifier) Receipt(ctx context.Context, s domain.Sale) {
	if s.FamilyEmail == "" {
		return
	}
	msg, err := n.receiptMessage(ctx, s, false)
	if err != nil {
		applog.Error(nil, "mail.render", err, map[string]any{"kind": string(KindReceipt), "sale_id": s.ID})
		return
	}
	n.disp.Go(KindReceipt, msg)
}

// ResendReceipt sends a copy of the receipt and waits for the result.
func (n *Notifier) ResendReceipt(ctx context.Context, s domain.Sale) error {
	if s.FamilyEmail == "" {
		return fmt.Errorf("sale %d has no contact email: %w", s.ID, domain.ErrPrecondition)
	}
	msg, err := n.receiptMessage(ctx, s, true)
	if err != nil {
		return err
	}
	return n.disp.SendNow(ctx, KindReceipt, msg)
}

// Cancellation queues the notice for a refunded sale.
func (n *Notifier) Cancellation(ctx context.Context, s domain.Sale, by string) {
	if s.FamilyEmail == "" {
		return
	}
	html, err := n.render.Render(KindCancellation, saleView{
		Org:        n.org(ctx),
		SaleID:     s.ID,
		Date:       time.Now().In(n.loc).Format("02-01-2006 15:04"),
		Seller:     by,
		FamilyID:   s.FamilyID,
		FamilyName: s.FamilyName,
		Method:     MethodLabel(s.Method),
		Lines:      s.Lines,
		Total:      s.Total,
	})
	if err != nil {
		applog.Error(nil, "mail.render", err, map[string]any{"kind": string(KindCancellation), "sale_id": s.ID})
		return
	}
	n.disp.Go(KindCancellation, Message{
		To:      s.FamilyEmail,
		Subject: fmt.Sprintf("Anulación Boleta N°%d", s.ID),
		HTML:    html,
		Bcc:     n.settings.List(ctx, repos.SettingBccEmails),
	})
}

// Welcome queues the greeting for a newly registered family.
func (n *Notifier) Welcome(ctx context.Context, f domain.Family, createdBy string) {
	if f.Email == "" {
		return
	}
	html, err := n.render.Render(KindWelcome, familyView{
		Org:        n.org(ctx),
		FamilyID:   f.ID,
		FamilyName: f.Name,
		Balance:    f.Balance,
		Seller:     createdBy,
	})
	if err != nil {
		applog.Error(nil, "mail.render", err, map[string]any{"kind": string(KindWelcome), "family_id": f.ID})
		return
	}
	n.disp.Go(KindWelcome, Message{To: f.Email, Subject: "Bienvenido a Sierras POS", HTML: html})
}

// Collection sends a balance notice to one family and waits for the result.
func (n *Notifier) Collection(ctx context.Context, f domain.Family) error {
	info, _ := n.settings.Get(ctx, repos.SettingPaymentInfo)
	html, err := n.render.Render(KindCollection, familyView{
		Org:         n.org(ctx),
		FamilyID:    f.ID,
		FamilyName:  f.Name,
		Balance:     f.Balance,
		PaymentInfo: info,
	})
	if err != nil {
		return err
	}
	return n.disp.SendNow(ctx, KindCollection, Message{
		To:      f.Email,
		Subject: fmt.Sprintf("Estado de cuenta Familia %s", f.Name),
		HTML:    html,
		Bcc:     n.settings.List(ctx, repos.SettingBccEmails),
	})
}

// Credentials queues the login data for a new user.
func (n *Notifier) Credentials(ctx context.Context, u domain.User, password string) {
	if u.Email == "" {
		return
	}
	html, err := n.render.Render(KindCredentials, credentialsView{
		Org:      n.org(ctx),
		Name:     u.Name,
		Username: u.Username,
		Password: password,
	})
	if err != nil {
		applog.Error(nil, "mail.render", err, map[string]any{"kind": string(KindCredentials), "user_id": u.ID})
		return
	}
	n.disp.Go(KindCredentials, Message{To: u.Email, Subject: "Credenciales", HTML: html})
}
