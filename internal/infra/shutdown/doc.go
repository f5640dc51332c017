// Package shutdown coordinates process teardown.
//
// A Handler collects cleanup hooks (save the shell history, stop the
// config watcher) and runs them once, newest first, when the process
// receives SIGINT/SIGTERM or when the caller finishes and calls Shutdown.
//
//	h := shutdown.NewHandler(5 * time.Second)
//	ctx, stop := h.NotifyContext(context.Background())
//	defer stop()
//	h.OnClose(history.Save)
//	...
//	return h.Shutdown()
package shutdown
