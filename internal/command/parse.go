// Package command 实现了视频生成命令文本的解析。
package command

import (
	"regexp"
	"strings"
)

var (
	sizeFlagPattern  = regexp.MustCompile(`--size\s+(\S+)`)
	ratioFlagPattern = regexp.MustCompile(`--ratio\s+(\S+)`)
	stripPattern     = regexp.MustCompile(`--size\s+\S+\s*|--ratio\s+\S+\s*`)

	validSize  = regexp.MustCompile(`^\d+x\d+$`)
	validRatio = regexp.MustCompile(`^\d+:\d+$`)
)

// Parse 从命令前缀之后的文本中解析出提示词、分辨率和比例。
// --size 宽x高 与 --ratio 宽:高 两个标志可以出现在文本任意位置；
// 合法的标志连同其后的空白一起从提示词中剔除。标志缺失或格式非法时
// 回退到默认值。该函数无副作用、永不失败：畸形输入只会退化为默认值。
func Parse(content, defaultSize, defaultRatio string) (prompt, size, ratio string) {
	size = defaultSize
	if m := sizeFlagPattern.FindStringSubmatch(content); m != nil && validSize.MatchString(m[1]) {
		size = m[1]
	}

	ratio = defaultRatio
	if m := ratioFlagPattern.FindStringSubmatch(content); m != nil && validRatio.MatchString(m[1]) {
		ratio = m[1]
	}

	// 标志连同取值一并剔除，畸形取值也剔除（只是不生效，回退默认值）。
	prompt = strings.TrimSpace(stripPattern.ReplaceAllString(content, ""))
	return prompt, size, ratio
}
