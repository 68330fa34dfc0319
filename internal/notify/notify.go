package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Notifier sends desktop notifications.
type Notifier struct {
	Enabled bool
}

// Send sends a desktop notification.
// On macOS, uses osascript to display notifications.
// On other platforms, this is a no-op.
func (n *Notifier) Send(title, message string) error {
	if n == nil || !n.Enabled {
		return nil
	}

	if runtime.GOOS != "darwin" {
		return nil
	}

	return sendMacOSNotification(title, message)
}

func sendMacOSNotification(title, message string) error {
	cmd := exec.Command("osascript", "-e", notificationScript(title, message))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("send notification: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// notificationScript renders the AppleScript for one notification. Messages
// carry error text and paths, so backslashes and quotes are both escaped.
func notificationScript(title, message string) string {
	escape := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", " ").Replace
	return fmt.Sprintf(`display notification "%s" with title "%s"`, escape(message), escape(title))
}

// FormatBatchComplete formats the notification sent when a batch ends.
func FormatBatchComplete(rows, executed, skipped, failed, timedOut int, batchErr error) (title, message string) {
	if batchErr != nil {
		title = "pynguinbatch stopped"
		message = fmt.Sprintf("%d runs executed before error: %v", executed, batchErr)
		return title, message
	}
	if failed > 0 || timedOut > 0 {
		title = "pynguinbatch finished with problems"
	} else {
		title = "pynguinbatch finished"
	}
	message = fmt.Sprintf("%d rows, %d runs executed, %d skipped, %d failed, %d timed out",
		rows, executed, skipped, failed, timedOut)
	return title, message
}
