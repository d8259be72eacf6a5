// Command signtrack detects road signs in a camera feed, video file or
// network stream, settles each physical sign on a single label by voting
// across frames and shows the results on a dashboard, over HTTP or in the
// log.
//
// Usage:
//
//	signtrack run [--camera N | --video PATH | --url URL] [--model NAME] [--headless]
//	signtrack serve [--camera N | --video PATH | --url URL] [--addr HOST:PORT]
//	signtrack models list
//	signtrack history [--limit N]
//	signtrack config show | init
package main
