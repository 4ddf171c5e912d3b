package backend

import "encoding/json"

// envelope is the response shape every collaborator endpoint returns. Business
// failures arrive as HTTP 200 with Status false, so callers branch on Status.
type envelope struct {
	Status  bool            `json:"status"`
	OK      *bool           `json:"ok,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type wireLine struct {
	LineID         string `json:"lineId"`
	ProductID      string `json:"productId"`
	Title          string `json:"title,omitempty"`
	Color          string `json:"color,omitempty"`
	Size           string `json:"size,omitempty"`
	UnitPrice      int64  `json:"unitPrice"`
	UnitMRP        int64  `json:"unitMrp"`
	Quantity       int    `json:"quantity"`
	AvailableStock *int   `json:"availableStock,omitempty"`
}

type wireCart struct {
	Currency string     `json:"currency"`
	Lines    []wireLine `json:"lines"`
}

type wireCouponRequest struct {
	Code               string   `json:"code"`
	OrderValue         int64    `json:"orderValue"`
	Currency           string   `json:"currency"`
	ProductOccurrences []string `json:"productOccurrences"`
}

type wireCoupon struct {
	Code               string   `json:"code"`
	Offer              string   `json:"offer"`
	FinalAmount        int64    `json:"finalAmount"`
	EligibleProductIDs []string `json:"eligibleProductIds,omitempty"`
}

type wireIntentRequest struct {
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	CouponCode string `json:"couponCode,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	AddressID  string `json:"addressId"`
}

type wireIntent struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

type wireVerifyRequest struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	PaymentID      string `json:"paymentId"`
	Signature      string `json:"signature"`
}
