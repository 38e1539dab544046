package browser

import (
	"encoding/json"
	"strings"

	"tubeguard/internal/dom"
	"tubeguard/internal/stylesheet"
)

// BindingName is the page function that forwards events to the driver.
const BindingName = "tubeguardEvent"

// SettingsEvent is the same-document custom event that toggles overlay
// suppression from another script context.
const SettingsEvent = "tubeguard-settings-updated"

// jsArgs renders values as a JavaScript argument list. JSON is valid JS.
func jsArgs(vs ...any) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		b, err := json.Marshal(v)
		if err != nil {
			b = []byte("null")
		}
		parts[i] = string(b)
	}
	return strings.Join(parts, ", ")
}

func call(fn string, args ...any) string {
	return "(" + fn + ")(" + jsArgs(args...) + ")"
}

// topFrameOnly is the first statement of every new-document script. Child
// frames such as the live chat iframe share the binding but are not the view.
const topFrameOnly = "if (window.top !== window) return;"

// EarlyPaintScript runs before any page script on every new document. It
// rebuilds the stylesheet from the local flag mirror so the first paint is
// already filtered.
func EarlyPaintScript() string {
	rules, defaults := stylesheet.EarlyRules()
	return call(`function (id, rules, defaults) {
  `+topFrameOnly+`
  try {
    var css = "";
    Object.keys(rules).sort().forEach(function (k) {
      var v = null;
      try { v = window.localStorage.getItem(k); } catch (e) {}
      if (v === null) v = defaults[k];
      if (v === "1") css += rules[k];
    });
    var el = document.getElementById(id);
    if (!el) {
      el = document.createElement("style");
      el.id = id;
      (document.head || document.documentElement).appendChild(el);
    }
    el.textContent = css;
  } catch (e) {}
}`, stylesheet.ElementID, rules, defaults)
}

// HookScript forwards router, readiness, media and gesture signals.
func HookScript() string {
	return call(`function (binding, settingsEvent) {
  `+topFrameOnly+`
  if (window.__tubeguardHooked) return;
  window.__tubeguardHooked = true;
  var send = function (ev) {
    try { window[binding](JSON.stringify(ev)); } catch (e) {}
  };
  send({kind: "load", url: location.href, readyState: document.readyState});
  window.addEventListener("yt-navigate-start", function (e) {
    var url = (e && e.detail && e.detail.url) || location.href;
    send({kind: "navigate-start", url: url});
  });
  window.addEventListener("yt-navigate-finish", function () {
    send({kind: "navigate-finish", url: location.href});
  });
  window.addEventListener("yt-page-data-updated", function () {
    send({kind: "page-data-updated", url: location.href});
  });
  document.addEventListener("readystatechange", function () {
    send({kind: "ready-state", url: location.href, readyState: document.readyState});
  });
  document.addEventListener("playing", function (e) {
    if (e.target && e.target.tagName === "VIDEO") send({kind: "playing", url: location.href});
  }, true);
  var gesture = function (e) {
    if (e.target && e.target.closest && e.target.closest("#movie_player")) {
      send({kind: "gesture", trusted: !!e.isTrusted});
    }
  };
  document.addEventListener("click", gesture, true);
  document.addEventListener("keydown", gesture, true);
  window.addEventListener(settingsEvent, function (e) {
    send({kind: "endscreen", blockEndscreen: !!(e.detail && e.detail.blockEndscreen)});
  });
}`, BindingName, SettingsEvent)
}

// observeScript (re)installs the named MutationObserver on selector. At most
// one observer per name exists; the old one is disconnected first.
func observeScript(name, kind, selector string, attrs bool) string {
	return call(`function (binding, name, kind, selector, attrs) {
  var reg = window.__tubeguardObs || (window.__tubeguardObs = {});
  if (reg[name]) { reg[name].disconnect(); delete reg[name]; }
  var root = document.querySelector(selector);
  if (!root) return false;
  var summarize = function (m) {
    var rec = {type: m.type, target: (m.target.tagName || "").toLowerCase()};
    if (m.type === "attributes") {
      rec.attribute = m.attributeName;
      return rec;
    }
    var added = [];
    m.addedNodes.forEach(function (n) {
      if (n.nodeType === 1) added.push({tag: n.tagName.toLowerCase(), "class": n.getAttribute("class") || ""});
    });
    if (!added.length) return null;
    rec.added = added;
    return rec;
  };
  var obs = new MutationObserver(function (list) {
    var batch = [];
    list.forEach(function (m) { var r = summarize(m); if (r) batch.push(r); });
    if (!batch.length) return;
    try { window[binding](JSON.stringify({kind: kind, batch: batch})); } catch (e) {}
  });
  var opts = {childList: true, subtree: true};
  if (attrs) { opts.attributes = true; opts.attributeFilter = ["style", "class"]; }
  obs.observe(root, opts);
  reg[name] = obs;
  return true;
}`, BindingName, name, kind, selector, attrs)
}

// rootIDScript returns a stable identity for the element under selector,
// or "" when absent. A recreated element gets a new identity.
func rootIDScript(selector string) string {
	return call(`function (selector) {
  var el = document.querySelector(selector);
  if (!el) return "";
  if (!el.__tubeguardID) {
    window.__tubeguardRoots = (window.__tubeguardRoots || 0) + 1;
    el.__tubeguardID = "root-" + window.__tubeguardRoots;
  }
  return el.__tubeguardID;
}`, selector)
}

// snapshotScript stamps every element under selector with a ref and
// returns the subtree's markup, or "" when absent.
func snapshotScript(selector string) string {
	return call(`function (selector, attr) {
  var root = document.querySelector(selector);
  if (!root) return "";
  var seq = window.__tubeguardRefs || 0;
  var stamp = function (el) {
    if (!el.hasAttribute(attr)) { seq++; el.setAttribute(attr, "r" + seq); }
  };
  stamp(root);
  root.querySelectorAll("*").forEach(stamp);
  window.__tubeguardRefs = seq;
  return root.outerHTML;
}`, selector, dom.RefAttr)
}

// liveMutations drops edits addressed to refs that only exist in a local
// snapshot.
func liveMutations(muts []dom.Mutation) []dom.Mutation {
	out := make([]dom.Mutation, 0, len(muts))
	for _, m := range muts {
		if m.Ref == "" || strings.HasPrefix(m.Ref, "local-") {
			continue
		}
		out = append(out, m)
	}
	return out
}

// applyScript replays a journal. Elements that vanished since the snapshot
// are skipped. It returns the number of edits applied.
func applyScript(muts []dom.Mutation) string {
	return call(`function (attr, muts) {
  var applied = 0;
  muts.forEach(function (m) {
    var el = document.querySelector("[" + attr + "=\"" + m.ref + "\"]");
    if (!el) return;
    switch (m.op) {
    case "set-attr": el.setAttribute(m.name, m.value || ""); break;
    case "remove-attr": el.removeAttribute(m.name); break;
    case "set-style": el.style.setProperty(m.name, m.value || "", m.important ? "important" : ""); break;
    case "remove-style": el.style.removeProperty(m.name); break;
    case "remove": el.remove(); break;
    default: return;
    }
    applied++;
  });
  return applied;
}`, dom.RefAttr, liveMutations(muts))
}

func setStyleScript(id, css string) string {
	return call(`function (id, css) {
  var el = document.getElementById(id);
  if (!el) {
    el = document.createElement("style");
    el.id = id;
    (document.head || document.documentElement).appendChild(el);
  }
  if (el.textContent !== css) el.textContent = css;
  return true;
}`, id, css)
}

func removeStyleScript(id string) string {
	return call(`function (id) {
  var el = document.getElementById(id);
  if (el) el.remove();
  return true;
}`, id)
}

func replaceScript(target string) string {
	return call(`function (url) { location.replace(url); return true; }`, target)
}

// dispatchSettingsScript raises SettingsEvent on the page window, where the
// hook script turns it back into an endscreen event.
func dispatchSettingsScript(blockEndscreen bool) string {
	return call(`function (name, on) {
  window.dispatchEvent(new CustomEvent(name, {detail: {blockEndscreen: on}}));
  return true;
}`, SettingsEvent, blockEndscreen)
}

// pauseTrailerScript pauses the featured video of a channel page. It
// reports whether anything was playing.
func pauseTrailerScript() string {
	return call(`function () {
  var paused = false;
  var p = document.querySelector("ytd-channel-video-player-renderer #movie_player");
  if (p && typeof p.pauseVideo === "function") {
    try {
      if (p.getPlayerState() === 1) { p.pauseVideo(); paused = true; }
    } catch (e) {}
  }
  var video = document.querySelector("ytd-channel-video-player-renderer video");
  if (video && !video.paused) { video.pause(); paused = true; }
  return paused;
}`)
}

func writeFlagsScript(flags map[string]string) string {
	return call(`function (flags) {
  Object.keys(flags).forEach(function (k) { window.localStorage.setItem(k, flags[k]); });
  return true;
}`, flags)
}

// playerCallScript invokes a movie_player API method. The result reports
// a missing player or method separately from a throwing one.
func playerCallScript(method string, args ...any) string {
	if args == nil {
		args = []any{}
	}
	return call(`function (method, args) {
  var p = document.getElementById("movie_player");
  if (!p || typeof p[method] !== "function") return {missing: true};
  try {
    var v = p[method].apply(p, args);
    return {ok: true, value: v === undefined ? null : v};
  } catch (e) {
    return {error: String(e)};
  }
}`, method, args)
}

// setRateScript sets the media element rate and, when present, the player
// API rate.
func setRateScript(rate float64) string {
	return call(`function (rate) {
  var video = document.querySelector("#movie_player video, video.html5-main-video");
  var p = document.getElementById("movie_player");
  var hasAPI = p && typeof p.setPlaybackRate === "function";
  if (!video && !hasAPI) return {missing: true};
  try {
    if (video) video.playbackRate = rate;
    if (hasAPI) p.setPlaybackRate(rate);
    return {ok: true, value: null};
  } catch (e) {
    return {error: String(e)};
  }
}`, rate)
}

// autoplayScript flips the up-next toggle toward on.
func autoplayScript(on bool) string {
	return call(`function (on) {
  var btn = document.querySelector(".ytp-autonav-toggle-button");
  if (!btn) return {missing: true};
  var checked = btn.getAttribute("aria-checked") === "true";
  if (checked !== on) btn.click();
  return {ok: true, value: null};
}`, on)
}
