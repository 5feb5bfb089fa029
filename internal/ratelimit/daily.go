// Package ratelimit は1日1回のアクション制限と短時間のクールダウンロックを提供する。
package ratelimit

import "time"

// CanAct は最終実行日時lastとnowから、今日そのアクションを実行できるかを判定する。
//
// 境界はUTCの暦日で、24時間のローリングウィンドウではない。
// 23:59に実行したユーザーは翌日0:01に再び実行できるが、
// 0:01に実行したユーザーは同日23:59には実行できない。
// nowがlastより前の日付の場合も拒否する。
func CanAct(last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	return utcDate(now).After(utcDate(*last))
}

// utcDate はtのUTC暦日の0時を返す。
func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
