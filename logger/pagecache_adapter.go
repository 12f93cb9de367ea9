package logger

import "github.com/kvstorelabs/pagecachectl/pagecache"

var tracePointNames = map[pagecache.DebugTracePoint]string{
	pagecache.TraceHit:            "hit",
	pagecache.TraceMiss:           "miss",
	pagecache.TraceReplace:        "replace",
	pagecache.TraceLoad:           "load",
	pagecache.TraceUnload:         "unload",
	pagecache.TraceWaitLoad:       "wait_load",
	pagecache.TraceWaitUnload:     "wait_unload",
	pagecache.TraceAddCapture:     "add_capture",
	pagecache.TraceReleaseCapture: "release_capture",
	pagecache.TraceRead:           "read",
	pagecache.TraceWrite:          "write",
	pagecache.TraceReadPage:       "read_page",
	pagecache.TraceWritePage:      "write_page",
}

// TracePointCallback adapts a pagecache.DebugTracePoint firing into a
// Debug-level log line. Wire it with
// (*pagecache.PageCacheController).SetDebugTracePoint — the core package
// never imports logrus itself, so this is the only bridge between the two.
func TracePointCallback(tp pagecache.DebugTracePoint) {
	name, ok := tracePointNames[tp]
	if !ok {
		name = "unknown"
	}
	Debugf("pagecache trace: %s", name)
}

// LogCallback adapts the controller's free-form debug log callback.
func LogCallback(message string) {
	Debug(message)
}
