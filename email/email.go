package email

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/smartsort/storefront/core/order"
	"github.com/smartsort/storefront/core/product"
)

// Mailer sends transactional mail over SMTP. Sends are best-effort: the
// caller dispatches them off the request path and only logs failures.
type Mailer struct {
	host   string
	port   string
	user   string
	pass   string
	sender string
}

func New(host string, port string, user string, pass string, sender string) *Mailer {
	return &Mailer{
		host:   host,
		port:   port,
		user:   user,
		pass:   pass,
		sender: sender,
	}
}

// SendPaymentConfirmation mails the customer after their order is paid.
// Course purchases include the resource link, service purchases a
// follow-up notice.
func (m *Mailer) SendPaymentConfirmation(ord order.Order, prd product.Product) error {
	var subject, body string

	switch prd.Type {
	case product.TypeCourse:
		subject = fmt.Sprintf("Course Access Confirmed - %s | SmartSort AI", prd.Title)

		link := "Course materials will be available shortly."
		if prd.ResourceLink.Valid {
			link = prd.ResourceLink.String
		}

		body = fmt.Sprintf(
			"Hello,\n\n"+
				"Your payment has been successfully processed.\n\n"+
				"Course: %s\n"+
				"Order ID: %s\n"+
				"Payment Reference: %s\n\n"+
				"%s\n\n"+
				"Access your course materials here:\n%s\n\n"+
				"Thank you for choosing SmartSort AI Solutions!\n",
			prd.Title, ord.ID, ord.PaymentReference.String, prd.Description, link,
		)

	default:
		subject = fmt.Sprintf("Service Request Confirmed - %s | SmartSort AI", prd.Title)

		body = fmt.Sprintf(
			"Hello,\n\n"+
				"Your service request has been successfully confirmed.\n\n"+
				"Service: %s\n"+
				"Order ID: %s\n"+
				"Payment Reference: %s\n\n"+
				"%s\n\n"+
				"Our team will be in touch within 24 hours to confirm project details.\n"+
				"Keep your order reference handy: %s\n\n"+
				"Thank you for your business!\n",
			prd.Title, ord.ID, ord.PaymentReference.String, prd.Description, ord.PaymentReference.String,
		)
	}

	return m.send(ord.CustomerEmail, subject, body)
}

func (m *Mailer) send(to string, subject string, body string) error {
	e := email.NewEmail()
	e.From = m.sender
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}

	return nil
}
