package email

import (
	"fmt"
	"strings"

	"github.com/example/storefront/internal/domain/order"
)

// BuildOrderConfirmationBody builds the HTML body for the customer order
// confirmation email.
func BuildOrderConfirmationBody(storeName string, e order.OrderCreated) string {
	var itemsHTML strings.Builder
	for _, item := range e.Items {
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">$%.2f</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">$%.2f</td>
			</tr>`,
			item.Name,
			item.Quantity,
			item.Price,
			item.Price*float64(item.Quantity),
		))
	}

	shipping := "FREE"
	if e.ShippingCost > 0 {
		shipping = fmt.Sprintf("$%.2f", e.ShippingCost)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Thank you for your order!</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Hi %s, we've received your order and are getting it ready.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order Number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">#%s</p>
		</div>

		<h2 style="font-size: 18px; border-bottom: 2px solid #667eea; padding-bottom: 10px;">Order Summary</h2>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Item</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Qty</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Price</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<p style="margin: 0; font-size: 14px; color: #666;">Subtotal: $%.2f &nbsp;&bull;&nbsp; Shipping: %s</p>
			<span style="font-size: 14px; color: #666;">Total</span>
			<span style="font-size: 24px; font-weight: bold; color: #667eea; margin-left: 10px;">$%.2f</span>
		</div>

		<p style="margin: 20px 0 0 0;">Shipping to:<br>
			%s<br>%s<br>%s, %s %s
		</p>

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This is an automated message from %s. If you have any questions, just reply to this email.
		</p>
	</div>
</body>
</html>`,
		addressee(e.Address.Name),
		e.OrderNumber,
		itemsHTML.String(),
		e.Subtotal, shipping, e.Total,
		e.Address.Name, e.Address.Street, e.Address.City, e.Address.State, e.Address.Zip,
		storeName)
}

// BuildOrderAlertBody builds the owner-facing new-order alert.
func BuildOrderAlertBody(storeName string, e order.OrderCreated) string {
	var lines strings.Builder
	for _, item := range e.Items {
		lines.WriteString(fmt.Sprintf("<li>%d &times; %s ($%.2f)</li>", item.Quantity, item.Name, item.Price))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h2>New order #%s</h2>
	<p><strong>$%.2f</strong> paid via %s by %s</p>
	<ul>%s</ul>
	<p>Ship to: %s, %s, %s, %s %s</p>
	<p style="font-size: 12px; color: #999;">%s order alert</p>
</body>
</html>`,
		e.OrderNumber, e.Total, e.Provider, e.Email,
		lines.String(),
		e.Address.Name, e.Address.Street, e.Address.City, e.Address.State, e.Address.Zip,
		storeName)
}

// BuildTrackingUpdateBody builds the shipped notification with the tracking
// number linked to USPS tracking.
func BuildTrackingUpdateBody(storeName string, e order.OrderShipped) string {
	trackingURL := "https://tools.usps.com/go/TrackConfirmAction?tLabels=" + e.TrackingNumber

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Your order is on its way!</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Order <strong>#%s</strong> has shipped.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Tracking Number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">
				<a href="%s" style="color: #667eea; text-decoration: none;">%s</a>
			</p>
		</div>

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This is an automated message from %s.
		</p>
	</div>
</body>
</html>`, e.OrderNumber, trackingURL, e.TrackingNumber, storeName)
}

// BuildWelcomeBody builds the registration welcome email.
func BuildWelcomeBody(storeName, name, baseURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h2>Welcome to %s, %s!</h2>
	<p>Your account is ready. Browse our products any time:</p>
	<p><a href="%s" style="color: #667eea;">%s</a></p>
	<p style="font-size: 12px; color: #999;">If you didn't create this account, you can ignore this email.</p>
</body>
</html>`, storeName, addressee(name), baseURL, baseURL)
}

// BuildPasswordResetBody builds the reset-link email. The link is valid for
// one hour and can be used once.
func BuildPasswordResetBody(storeName, resetURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h2>Reset your %s password</h2>
	<p>Someone requested a password reset for your account. The link below is valid for one hour and can be used once.</p>
	<p style="margin: 25px 0;">
		<a href="%s" style="background: #667eea; color: white; padding: 12px 24px; border-radius: 5px; text-decoration: none;">Reset Password</a>
	</p>
	<p style="font-size: 12px; color: #999;">If you didn't request this, you can ignore this email. Your password won't change.</p>
</body>
</html>`, storeName, resetURL)
}

func addressee(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
