package browser

// clickJS clicks the element matching the selector argument. Buttons the
// page keeps disabled until it has settled are enabled first.
const clickJS = `(function(sel) {
  var el = document.querySelector(sel);
  if (!el) return false;
  el.setAttribute('data-disabled', 'false');
  el.removeAttribute('disabled');
  el.click();
  return true;
})(%s)`

// clearJS empties a textarea through the native setter so the page's
// framework sees the change.
const clearJS = `(function(sel) {
  var el = document.querySelector(sel);
  if (!el) return false;
  el.focus();
  var setter = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(el), 'value');
  if (setter && setter.set) { setter.set.call(el, ''); } else { el.value = ''; }
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})(%s)`

const scanJS = `(function() {
  var linkSel = 'a[href*="/p/s_"], a[href*="/d/gen_"]';
  var hrefs = function(sel) {
    return Array.from(document.querySelectorAll(sel)).map(function(a) { return a.href; });
  };
  var nearest = function(el, scope) {
    var root = scope ? el : el.closest('div, article, section');
    var a = root && root.querySelector(linkSel);
    return a ? a.href : '';
  };
  var out = {
    path: location.pathname,
    publishedLinks: hrefs('a[href*="/p/s_"]'),
    draftLinks: hrefs('a[href*="/d/gen_"]'),
    textNodes: [],
    cards: []
  };
  if (location.pathname !== '/drafts') return out;
  document.querySelectorAll('*').forEach(function(el) {
    var text = el.textContent || '';
    if (text.length >= 300) return;
    if (text.indexOf('%') < 0 && text.indexOf('生成') < 0 && text.indexOf('Generating') < 0) return;
    out.textNodes.push({ text: text, link: nearest(el, false) });
  });
  document.querySelectorAll('[class*="card"], [class*="item"], [class*="video"]').forEach(function(card) {
    var bar = card.querySelector('[role="progressbar"], [class*="progress"]');
    if (!bar) return;
    out.cards.push({ text: card.textContent || '', link: nearest(card, true), progressBar: true });
  });
  return out;
})()`

const sessionJS = `fetch('/api/auth/session', { credentials: 'include' })
  .then(function(r) { return r.ok ? r.json() : {}; })
  .then(function(s) { return (s && s.user) || {}; })`
