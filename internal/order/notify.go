package order

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"ms-pos/internal/models"
)

var orderTypeLabels = map[models.OrderType]string{
	models.OrderTypeDineIn:      "В залі",
	models.OrderTypeTakeaway:    "З собою",
	models.OrderTypeDelivery:    "Доставка",
	models.OrderTypeSelfService: "Самообслуговування",
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatOrderMessage renders the staff notification for a new order as HTML.
func FormatOrderMessage(o *models.Order) string {
	var b strings.Builder

	label, ok := orderTypeLabels[o.OrderType]
	if !ok {
		label = string(o.OrderType)
	}

	fmt.Fprintf(&b, "<b>Нове замовлення!</b>\n\n")
	fmt.Fprintf(&b, "<b>№ %s</b>\n", html.EscapeString(o.OrderNumber))
	fmt.Fprintf(&b, "<b>Тип:</b> %s", label)
	if o.TableNumber != nil {
		fmt.Fprintf(&b, "\n<b>Столик:</b> %d", *o.TableNumber)
	}
	if o.CustomerName != "" {
		fmt.Fprintf(&b, "\n<b>Клієнт:</b> %s", html.EscapeString(o.CustomerName))
	}
	if o.CustomerPhone != "" {
		fmt.Fprintf(&b, "\n<b>Телефон:</b> %s", html.EscapeString(o.CustomerPhone))
	}
	if o.DeliveryAddr != "" {
		fmt.Fprintf(&b, "\n<b>Адреса:</b> %s", html.EscapeString(o.DeliveryAddr))
	}

	b.WriteString("\n\n<b>Замовлення:</b>\n")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "  • %s x%d: %s грн\n", html.EscapeString(it.Name), it.Quantity, money(it.UnitPrice()*float64(it.Quantity)))
	}

	if o.DiscountAmount > 0 {
		fmt.Fprintf(&b, "\n<b>Знижка:</b> -%s грн", money(o.DiscountAmount))
		if o.PromoCode != "" {
			fmt.Fprintf(&b, " (промокод: %s)", html.EscapeString(o.PromoCode))
		}
	}
	if o.Notes != "" {
		fmt.Fprintf(&b, "\n<b>Примітка:</b> %s", html.EscapeString(o.Notes))
	}
	fmt.Fprintf(&b, "\n\n<b>Разом: %s грн</b>", money(o.Total))

	return b.String()
}
