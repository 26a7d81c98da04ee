package service

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"taskchat/model"
	"taskchat/platform"

	"github.com/jordan-wright/email"
)

// DigestService 每日给还有未完成任务的用户发一封摘要邮件，
// 由 main 里的 cron 触发
type DigestService struct{}

func (d *DigestService) SendPendingDigest() error {
	logger.Infof("[%s] Start scheduled task SendPendingDigest", "scheduled task")

	store := model.NewTaskStore(platform.DB)
	users, err := store.OwnersWithPendingTasks()
	if err != nil {
		logger.Warnf("[%s] list owners error, %s", "scheduled task", err)
		return err
	}

	sent := 0
	for _, user := range users {
		tasks, err := store.ListByOwner(user.ID, model.StatusPending)
		if err != nil {
			logger.Warnf("[%s] list pending tasks error for user %d, %s", "scheduled task", user.ID, err)
			continue
		}
		if len(tasks) == 0 {
			continue
		}
		if err := d.sendDigestMail(&user, tasks); err != nil {
			logger.Warnf("[%s] send digest mail error for user %d, %s", "scheduled task", user.ID, err)
			continue
		}
		sent++
	}

	logger.Infof("[%s] Finished scheduled task SendPendingDigest, sent %d mails", "scheduled task", sent)
	return nil
}

func (d *DigestService) sendDigestMail(user *model.User, tasks []model.Task) error {
	var lines []string
	for _, t := range tasks {
		line := fmt.Sprintf("- %s", t.Title)
		if t.DueDate != nil {
			line += fmt.Sprintf(" (due %s)", t.DueDate.Format("2006-01-02"))
		}
		lines = append(lines, line)
	}

	body := fmt.Sprintf("Hi %s,\n\nYou have %d pending task(s):\n\n%s\n",
		user.Username, len(tasks), strings.Join(lines, "\n"))

	e := email.NewEmail()
	e.From = os.Getenv("MAIL_FROM")
	e.To = []string{user.Email}
	e.Subject = fmt.Sprintf("Your task digest: %d pending", len(tasks))
	e.Text = []byte(body)

	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	auth := smtp.PlainAuth("", os.Getenv("SMTP_USER"), os.Getenv("SMTP_PASSWORD"), host)
	return e.Send(host+":"+port, auth)
}
