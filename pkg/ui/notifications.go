package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// commandSender runs a platform notification command
type commandSender struct {
	build func(title, message string) (string, []string)
}

func (c *commandSender) Send(title, message string) error {
	name, args := c.build(title, message)
	return exec.Command(name, args...).Run()
}

// notifyCommand returns the notification command for goos, or "" if unsupported
func notifyCommand(goos, title, message string) (string, []string) {
	switch goos {
	case "linux":
		return "notify-send", []string{title, message}
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		return "osascript", []string{"-e", script}
	case "windows":
		script := fmt.Sprintf(`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
$t = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
$n = $t.GetElementsByTagName("text")
$n.Item(0).AppendChild($t.CreateTextNode(%q)) | Out-Null
$n.Item(1).AppendChild($t.CreateTextNode(%q)) | Out-Null
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("xscraper").Show([Windows.UI.Notifications.ToastNotification]::new($t))`, title, message)
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
	default:
		return "", nil
	}
}

// Notifier prints run events and optionally raises desktop notifications
type Notifier struct {
	sender NotificationSender
}

// NewNotifier creates a Notifier; desktop delivery is used only when enabled
// and the platform is supported
func NewNotifier(desktop bool) *Notifier {
	n := &Notifier{}
	if !desktop {
		return n
	}
	if name, _ := notifyCommand(runtime.GOOS, "", ""); name != "" {
		n.sender = &commandSender{build: func(title, message string) (string, []string) {
			return notifyCommand(runtime.GOOS, title, message)
		}}
	}
	return n
}

// NewNotifierWithSender creates a Notifier with an explicit sender
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) send(title, message string) {
	if n.sender != nil {
		// delivery failures are not surfaced
		_ = n.sender.Send(title, message)
	}
}

// SendSuccess reports a finished run
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(Output, "\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

// SendError reports a failed run
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(Output, "\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}
