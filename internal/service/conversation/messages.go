package conversation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/adeyemi/chopbot/internal/model/menu"
	"github.com/adeyemi/chopbot/internal/model/order"
)

// inputPattern accepts the reserved commands or a comma-separated list of
// positive integers; everything else is rejected before dispatch.
var inputPattern = regexp.MustCompile(`^(0|1|97|98|99|\d+(,\d+)*)$`)

const (
	welcomeText = "Welcome to ChopBot! I can take your order."

	optionsText = "What would you like to do?\n" +
		"1. See the menu & place an order\n" +
		"99. Checkout order\n" +
		"98. Order history\n" +
		"97. Current order\n" +
		"0. Cancel order"

	invalidInputText       = "Sorry, I didn't get that. Please reply with one of the numbers below."
	invalidSelectionText   = "None of those matched an item on the menu. Please pick by number, e.g. 1 or 1,3."
	noCurrentOrderText     = "You do not have a current order."
	noHistoryText          = "You have no past orders yet."
	cancelledText          = "Your order has been cancelled and your cart is empty."
	nothingToPlaceText     = "You have nothing to place. Send 1 to see the menu."
	itemVanishedText       = "Some items in your cart are no longer on the menu, so your cart has been cleared. Please select again."
	belowMinimumText       = "That order is below the minimum we can charge. Please add more items."
	pendingExistsText      = "You already have an order awaiting payment. Send 99 to pay for it or 0 to cancel it first."
	paymentUnavailableText = "Payment is unavailable right now, please try again shortly."
	redirectingText        = "Taking you to the payment page to complete your order..."
	retryLaterText         = "Something went wrong on our end. Please try again in a moment."
)

func renderMenu(items []menu.Item) string {
	var b strings.Builder
	b.WriteString("Here is our menu. Reply with the item numbers, separated by commas (e.g. 1,3):\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s - %s\n   %s\n", i+1, item.Name, naira(item.Price), item.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSelection(count, total int) string {
	noun := "items"
	if count == 1 {
		noun = "item"
	}
	return fmt.Sprintf("Added %d %s to your order. Running total: %s.", count, noun, naira(total))
}

type cartLine struct {
	name  string
	price int
}

func renderCart(lines []cartLine, total int) string {
	var b strings.Builder
	b.WriteString("Your current order:\n")
	for _, l := range lines {
		if l.price == 0 {
			fmt.Fprintf(&b, "- %s\n", l.name)
			continue
		}
		fmt.Fprintf(&b, "- %s (%s)\n", l.name, naira(l.price))
	}
	fmt.Fprintf(&b, "Total: %s", naira(total))
	return b.String()
}

func renderOrder(o order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s (%s):\n", o.ID, o.Status)
	for _, li := range o.Items {
		fmt.Fprintf(&b, "- %s x%d (%s)\n", li.Name, li.Quantity, naira(li.Price))
	}
	fmt.Fprintf(&b, "Total: %s", naira(o.Total))
	return b.String()
}

func renderHistory(orders []order.Order) string {
	if len(orders) == 0 {
		return noHistoryText
	}
	var b strings.Builder
	b.WriteString("Your past orders, newest first:\n")
	for _, o := range orders {
		names := make([]string, 0, len(o.Items))
		for _, li := range o.Items {
			names = append(names, li.Name)
		}
		fmt.Fprintf(&b, "- %s | %s | %s | %s | %s\n",
			o.ID,
			o.CreatedAt.Format("02 Jan 2006 15:04"),
			strings.Join(names, ", "),
			naira(o.Total),
			o.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func naira(amount int) string {
	return fmt.Sprintf("₦%d", amount)
}
