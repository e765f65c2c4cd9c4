package service

import (
	"context"
	"fmt"
	"time"
)

// 通知类型
const (
	NotifyRequestCreated          = "substitution_request_created"
	NotifyRequestCreatedBroadcast = "substitution_request_created_broadcast"
	NotifyRequestApproved         = "substitution_request_approved"
	NotifySubstituteAssigned      = "substitution_assigned"
	NotifyRequestLostRace         = "substitution_request_cancelled_lost_race"
	NotifyRequestDeclinedAck      = "substitution_request_declined_ack"
	NotifyCandidateDeclined       = "substitution_candidate_declined"
	NotifyRequestWithdrawn        = "substitution_request_withdrawn"
)

// Recipient 通知接收方，三者取其一：直接用户、教师（投递时解析为其用户）、某角色全部用户
type Recipient struct {
	UserID    string
	TeacherID string
	Role      string
}

// Payload 通知模板变量
type Payload struct {
	RequestID      string
	AbsenceID      string
	LessonID       string
	Instrument     string
	LessonDate     time.Time
	StartTime      string
	EndTime        string
	CandidateCount int    // 广播人数
	TeacherName    string // 相关教师（拒绝者 / 代课者）
}

// Message 一条待投递的通知
type Message struct {
	Type      string
	Recipient Recipient
	Payload   Payload
}

// Notifier 通知投递入口，即发即忘：不返回错误，失败只记录日志
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// render 渲染标题与正文
func render(msg Message) (string, string) {
	p := msg.Payload
	lesson := fmt.Sprintf("%s %s %s-%s 的%s课", p.LessonDate.Format(dateLayout), weekdayName(p.LessonDate),
		shortClock(p.StartTime), shortClock(p.EndTime), p.Instrument)

	switch msg.Type {
	case NotifyRequestCreated:
		return "新的代课请求", fmt.Sprintf("您被邀请代课：%s。请尽快确认或拒绝。", lesson)
	case NotifyRequestCreatedBroadcast:
		return "新的代课请求（抢单）", fmt.Sprintf("您与其他 %d 位老师同时被邀请代课：%s。先确认者获得该课程。", p.CandidateCount-1, lesson)
	case NotifyRequestApproved:
		return "代课已确认", fmt.Sprintf("您已成功接下代课：%s。", lesson)
	case NotifySubstituteAssigned:
		return "代课已安排", fmt.Sprintf("%s 已由 %s 老师代课。", lesson, p.TeacherName)
	case NotifyRequestLostRace:
		return "代课请求已取消", fmt.Sprintf("另一位老师已接下该课程：%s。您无需再回复。", lesson)
	case NotifyRequestDeclinedAck:
		return "已拒绝代课", fmt.Sprintf("您已拒绝代课请求：%s。", lesson)
	case NotifyCandidateDeclined:
		return "候选教师已拒绝", fmt.Sprintf("%s 老师拒绝了代课请求：%s。", p.TeacherName, lesson)
	case NotifyRequestWithdrawn:
		return "代课请求已撤回", fmt.Sprintf("课程已变更或取消，代课请求失效：%s。", lesson)
	default:
		return "系统通知", lesson
	}
}

func shortClock(s string) string {
	if len(s) >= 5 {
		return s[:5]
	}
	return s
}

func weekdayName(t time.Time) string {
	return [...]string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}[t.Weekday()]
}
