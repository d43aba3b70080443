package domain

type Family struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Email   string `db:"email" json:"email"`
	Phone   string `db:"phone" json:"phone"`
	Balance int64  `db:"balance" json:"balance"` // positive = owes, negative = credit in favor
}

type Product struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Photo     string `db:"photo" json:"photo"`
	Category  string `db:"category" json:"category"`
	Price     int64  `db:"price" json:"price"`
	Cost      int64  `db:"cost" json:"cost"`
	Stock     int64  `db:"stock" json:"stock"`
	Active    bool   `db:"active" json:"active"`
	SortOrder int    `db:"sort_order" json:"sortOrder"`
}

type PaymentMethod string

const (
	PayCash   PaymentMethod = "cash"
	PayCredit PaymentMethod = "credit"
)

func (m PaymentMethod) Valid() bool { return m == PayCash || m == PayCredit }

type SaleStatus string

const (
	SaleOK       SaleStatus = "ok"
	SaleRefunded SaleStatus = "refunded"
)

// SaleLine is one entry of the cart snapshot stored with a sale.
type SaleLine struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Category  string `json:"category,omitempty"`
	Numbers   []int  `json:"numbers,omitempty"`
}

func (l SaleLine) Subtotal() int64 { return l.Quantity * l.UnitPrice }

// Sale is immutable once created, except for Status (ok -> refunded).
type Sale struct {
	ID           int64         `db:"id" json:"id"`
	CreatedAt    string        `db:"created_at" json:"createdAt"`
	Seller       string        `db:"seller" json:"seller"`
	FamilyID     int64         `db:"family_id" json:"familyId"`
	FamilyName   string        `db:"family_name" json:"familyName"`
	FamilyEmail  string        `db:"family_email" json:"familyEmail"`
	BalanceAfter int64         `db:"balance_after" json:"balanceAfter"`
	Total        int64         `db:"total" json:"total"`
	Method       PaymentMethod `db:"payment_method" json:"method"`
	DetailJSON   string        `db:"detail_json" json:"-"`
	Status       SaleStatus    `db:"status" json:"status"`
	Lines        []SaleLine    `db:"-" json:"lines"`
}

type Reservation struct {
	Number    int    `db:"number" json:"number"`
	SaleID    int64  `db:"sale_id" json:"saleId"`
	ClaimedAt string `db:"claimed_at" json:"claimedAt"`
}

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSeller Role = "seller"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleSeller }

type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Hash     string `db:"password_hash" json:"-"`
	Role     Role   `db:"role" json:"role"`
	Name     string `db:"name" json:"name"`
	Email    string `db:"email" json:"email"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// Caller is the identity the auth layer hands to the services.
type Caller struct {
	UserID int64
	Name   string
	Role   Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }
