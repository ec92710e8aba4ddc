package app

import (
	"net/url"
	"strings"
)

// Query parameters carried by the callback URLs.
const (
	QueryOrder   = "order"
	QueryGateway = "payment_gateway"
	QueryStep    = "step"
)

// Path tokens used when building callback URLs.
const (
	StepPayment  = "payment"
	StepComplete = "complete"
)

// CallbackURLs derives the absolute provider callback URLs for an order. They
// depend only on the base URL, order id, step token and gateway id, so any
// node can rebuild them.
type CallbackURLs struct {
	base      string
	gatewayID string
}

func NewCallbackURLs(baseURL, gatewayID string) CallbackURLs {
	return CallbackURLs{base: strings.TrimRight(baseURL, "/"), gatewayID: gatewayID}
}

// Cancel is used both as the checkout and the back-to-store URI.
func (c CallbackURLs) Cancel(orderID string) string {
	return c.checkout(orderID, "cancel")
}

// Return is the confirmation URI the customer is redirected to.
func (c CallbackURLs) Return(orderID string) string {
	return c.checkout(orderID, "return")
}

// Notify is the push URI for server-to-server notifications.
func (c CallbackURLs) Notify(orderID string) string {
	q := url.Values{}
	q.Set(QueryOrder, orderID)
	q.Set(QueryStep, StepComplete)
	return c.base + "/payment/notify/" + url.PathEscape(c.gatewayID) + "?" + q.Encode()
}

func (c CallbackURLs) checkout(orderID, action string) string {
	q := url.Values{}
	q.Set(QueryGateway, c.gatewayID)
	return c.base + "/checkout/" + url.PathEscape(orderID) + "/" + StepPayment + "/" + action + "?" + q.Encode()
}
