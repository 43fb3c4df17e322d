package cdp

import (
	"encoding/json"
	"fmt"

	"github.com/odvcencio/webshots/pkg/driver"
)

// jsString renders s as a safely quoted JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// locator returns a JS expression evaluating to the matched element or null.
func locator(sel driver.Selector) string {
	switch sel.By {
	case driver.ByXPath:
		return fmt.Sprintf(
			"document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue",
			jsString(sel.Value))
	default:
		return fmt.Sprintf("document.querySelector(%s)", jsString(sel.Value))
	}
}

// displayed mirrors the usual automation notion of visibility: the
// element occupies layout space.
const displayedCheck = "!!(el && (el.offsetWidth || el.offsetHeight || el.getClientRects().length))"

func visibleExpr(sel driver.Selector) string {
	return fmt.Sprintf("(() => { const el = %s; return %s; })()", locator(sel), displayedCheck)
}

func goneExpr(sel driver.Selector) string {
	return fmt.Sprintf("(() => { const el = %s; return !(%s); })()", locator(sel), displayedCheck)
}

// clickExpr clicks the element if it is displayed; false means "not yet".
func clickExpr(sel driver.Selector) string {
	return fmt.Sprintf(
		"(() => { const el = %s; if (!(%s)) return false; el.click(); return true; })()",
		locator(sel), displayedCheck)
}

func textExpr(sel driver.Selector) string {
	return fmt.Sprintf(
		"(() => { const el = %s; return el ? el.textContent.trim() : null; })()",
		locator(sel))
}

// setValueExpr types into form controls the way a user would, firing
// the input events frameworks listen for.
func setValueExpr(sel driver.Selector, text string) string {
	return fmt.Sprintf(
		`(() => { const el = %s; if (!el) return false;
el.focus(); el.value = %s;
el.dispatchEvent(new Event('input', {bubbles: true}));
el.dispatchEvent(new Event('change', {bubbles: true}));
return true; })()`,
		locator(sel), jsString(text))
}

func submitExpr(sel driver.Selector) string {
	return fmt.Sprintf(
		`(() => { const el = %s; if (!el) return false;
const form = el.form || el.closest('form');
if (form) { form.requestSubmit ? form.requestSubmit() : form.submit(); return true; }
return false; })()`,
		locator(sel))
}

const readyStateExpr = `document.readyState === "complete"`
