package utils

import "os/exec"

// CheckFFmpeg 检查ffmpeg是否可用
func CheckFFmpeg() bool {
	return exec.Command("ffmpeg", "-version").Run() == nil
}

// CheckFFprobe 检查ffprobe是否可用
func CheckFFprobe() bool {
	return exec.Command("ffprobe", "-version").Run() == nil
}

// CheckYtDlp 检查yt-dlp是否可用
func CheckYtDlp() bool {
	return exec.Command("yt-dlp", "--version").Run() == nil
}
