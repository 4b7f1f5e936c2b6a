package models

import (
	"time"
)

const (
	APPName    = "WAPOS Sync"
	APPVersion = "1.0"
)

// Mutation types accepted by the ingestion endpoints. Each type has its own
// client-side queue partition so a failure in one never blocks another.
const (
	MUTATION_SALE     = "sale"
	MUTATION_ORDER    = "order"
	MUTATION_CUSTOMER = "customer"
)

const (
	PAYMENT_CASH          = "cash"
	PAYMENT_CARD          = "card"
	PAYMENT_MOBILE_MONEY  = "mobile_money"
	PAYMENT_BANK_TRANSFER = "bank_transfer"
)

// Chart-of-accounts codes used by sale postings. Seeded at bootstrap.
const (
	ACCOUNT_CASH        = "1000"
	ACCOUNT_RECEIVABLE  = "1100"
	ACCOUNT_TAX_PAYABLE = "2100"
	ACCOUNT_REVENUE     = "4000"
)

const (
	SOURCE_SALE = "sale"
)

// SyncRequestHeader marks calls that originate from a drain cycle rather
// than an interactive session. Logging only, never authorization.
const SyncRequestHeader = "X-Sync-Request"

// Response is the type for response
type Response struct {
	Error   bool   `json:"error"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JWT holds the authenticated user info
type JWT struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Issuer    string `json:"iss"`
	Audience  string `json:"aud"`
	ExpiresAt int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
}

// User is an operator account for the signin boundary
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
	Audience  string
	Algorithm string
	Expiry    time.Duration
}

type DBConfig struct {
	DSN string
}

// Config holds the API server configuration
type Config struct {
	Addr     string
	Env      string
	LogLevel string
	JWT      JWTConfig
	DB       DBConfig
}

// AgentConfig holds the client-side sync agent configuration
type AgentConfig struct {
	ServerAddr    string
	SQLitePath    string
	LogLevel      string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	// ProbeURLs are fanned out to when the agent sits on a local/loopback
	// network. Deployed agents probe ServerAddr/api/v1/ping instead.
	ProbeURLs []string
}

// Product is reference data cached on clients to keep the register usable offline
type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	CategoryID    int64     `json:"category_id"`
	Price         float64   `json:"price"`
	TaxRate       float64   `json:"tax_rate"`
	StockQuantity float64   `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Category is reference data for the offline product catalog
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
