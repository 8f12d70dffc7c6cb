package browser

import "fmt"

// ctaSelector matches interactive elements in document order.
const ctaSelector = `a, button, [onclick], [role="button"]`

var ctaListScript = fmt.Sprintf(`Array.from(document.querySelectorAll(%q))`, ctaSelector)

const linksScript = `Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`

func snapshotScript(index int) string {
	return fmt.Sprintf(`(() => {
  const el = %s[%d];
  if (!el) return null;
  const img = el.querySelector('img');
  const cs = window.getComputedStyle(el);
  const section = el.closest('footer') ? 'footer' : (el.closest('header, nav') ? 'header' : 'body');
  return {
    tag: el.tagName,
    href: el.hasAttribute('href') && el.getAttribute('href').trim() !== '' ? (el.href || el.getAttribute('href')) : '',
    onclick: el.hasAttribute('onclick'),
    text: (el.innerText || el.textContent || '').trim(),
    ariaLabel: el.getAttribute('aria-label') || '',
    alt: el.getAttribute('alt') || '',
    title: el.getAttribute('title') || '',
    imageAlt: img ? (img.getAttribute('alt') || '') : '',
    className: typeof el.className === 'string' ? el.className : (el.getAttribute('class') || ''),
    hasIcon: !!el.querySelector('svg, i, img, [class*="icon"]'),
    section: section,
    style: {
      color: cs.color,
      fontSize: cs.fontSize,
      fontWeight: cs.fontWeight,
      padding: cs.padding,
      borderRadius: cs.borderRadius
    }
  };
})()`, ctaListScript, index)
}

func clickScript(index int) string {
	return fmt.Sprintf(`(() => {
  const el = %s[%d];
  if (!el) return false;
  el.scrollIntoView({block: 'center'});
  el.click();
  return true;
})()`, ctaListScript, index)
}
