package backend

import "encoding/json"

// Role values issued by the backend.
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

// Order statuses accepted by PUT /orders/admin/{id}/status.
const (
	OrderPending    = "PENDING"
	OrderConfirmed  = "CONFIRMED"
	OrderProcessing = "PROCESSING"
	OrderShipped    = "SHIPPED"
	OrderDelivered  = "DELIVERED"
	OrderCancelled  = "CANCELLED"
)

var orderStatuses = map[string]struct{}{
	OrderPending: {}, OrderConfirmed: {}, OrderProcessing: {},
	OrderShipped: {}, OrderDelivered: {}, OrderCancelled: {},
}

// ValidOrderStatus reports whether status is one the backend understands.
func ValidOrderStatus(status string) bool {
	_, ok := orderStatuses[status]
	return ok
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

type AuthResponse struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

type Product struct {
	ID          int64   `json:"id,omitempty"`
	Name        string  `json:"name"`
	Flavor      string  `json:"flavor,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Available   bool    `json:"available"`
}

type CartItem struct {
	ID       int64   `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

type OrderItem struct {
	ID       int64   `json:"id,omitempty"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// UserRef is the user embedded in admin order listings.
type UserRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

type Order struct {
	ID          int64       `json:"id"`
	User        *UserRef    `json:"user,omitempty"`
	UserEmail   string      `json:"userEmail,omitempty"`
	OrderDate   Timestamp   `json:"orderDate"`
	CreatedAt   Timestamp   `json:"createdAt"`
	TotalAmount float64     `json:"totalAmount"`
	Status      string      `json:"status"`
	Items       []OrderItem `json:"items"`
}

// PlacedAt prefers orderDate and falls back to createdAt.
func (o Order) PlacedAt() Timestamp {
	if !o.OrderDate.IsZero() {
		return o.OrderDate
	}
	return o.CreatedAt
}

// CustomerEmail returns the best available email for the order's customer.
func (o Order) CustomerEmail() string {
	if o.User != nil && o.User.Email != "" {
		return o.User.Email
	}
	return o.UserEmail
}

// UserWithStats is one row of GET /admin/users/with-stats and GET /admin/users/{id}/stats.
type UserWithStats struct {
	UserID               int64          `json:"userId"`
	UserName             string         `json:"userName"`
	UserEmail            string         `json:"userEmail"`
	UserRole             string         `json:"userRole"`
	UserActive           bool           `json:"userActive"`
	JoinDate             Timestamp      `json:"joinDate"`
	LastUpdated          Timestamp      `json:"lastUpdated"`
	TotalOrders          int            `json:"totalOrders"`
	TotalSpent           float64        `json:"totalSpent"`
	AverageOrderValue    float64        `json:"averageOrderValue"`
	LastOrderDate        Timestamp      `json:"lastOrderDate"`
	OrderStatusBreakdown map[string]int `json:"orderStatusBreakdown,omitempty"`
	Phone                string         `json:"phone,omitempty"`
	Address              string         `json:"address,omitempty"`
	City                 string         `json:"city,omitempty"`
	State                string         `json:"state,omitempty"`
	ZipCode              string         `json:"zipCode,omitempty"`
	Country              string         `json:"country,omitempty"`
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Coupon mirrors the backend coupon resource.
type Coupon struct {
	ID                    int64     `json:"id,omitempty"`
	Code                  string    `json:"code"`
	Description           string    `json:"description"`
	DiscountType          string    `json:"discountType"`
	DiscountValue         float64   `json:"discountValue"`
	MinimumOrderAmount    float64   `json:"minimumOrderAmount"`
	MaximumDiscountAmount *float64  `json:"maximumDiscountAmount,omitempty"`
	StartDate             Timestamp `json:"startDate"`
	EndDate               Timestamp `json:"endDate"`
	UsageLimit            *int      `json:"usageLimit,omitempty"`
	UsageCount            int       `json:"usageCount"`
	UserUsageLimit        *int      `json:"userUsageLimit,omitempty"`
	Active                bool      `json:"active"`
	FirstTimeUserOnly     bool      `json:"firstTimeUserOnly"`
	FreeShipping          bool      `json:"freeShipping"`
	CreatedAt             Timestamp `json:"createdAt,omitempty"`
	UpdatedAt             Timestamp `json:"updatedAt,omitempty"`
}

// CustomerDetails is nested in the PhonePe initiate payload.
type CustomerDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type PhonePeInitiate struct {
	Amount          float64         `json:"amount"`
	OrderID         string          `json:"orderId"`
	CustomerDetails CustomerDetails `json:"customerDetails"`
}

type PhonePeSession struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"paymentUrl"`
	Message    string `json:"message,omitempty"`
}

type PaytmInitiate struct {
	OrderID    string  `json:"orderId"`
	Amount     float64 `json:"amount"`
	CustomerID string  `json:"customerId"`
}

type PaytmSession struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// CODOrder is posted to /orders/cod; Amount already includes the COD surcharge.
type CODOrder struct {
	OrderID         string  `json:"orderId"`
	Amount          float64 `json:"amount"`
	CODCharges      float64 `json:"codCharges"`
	CustomerName    string  `json:"customerName"`
	CustomerEmail   string  `json:"customerEmail"`
	CustomerPhone   string  `json:"customerPhone"`
	ShippingAddress string  `json:"shippingAddress"`
}

type CODConfirmation struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Message string `json:"message,omitempty"`
}

// Verification is the backend's answer to /payment/verify; Raw keeps the full body.
type Verification struct {
	Success  bool            `json:"success"`
	Verified bool            `json:"verified"`
	Message  string          `json:"message,omitempty"`
	Raw      json.RawMessage `json:"-"`
}
