package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ByLCY/rotulus/dsl"
	"github.com/ByLCY/rotulus/layout"
	"github.com/ByLCY/rotulus/media"
	"github.com/ByLCY/rotulus/player"
	"github.com/ByLCY/rotulus/scene"
)

func main() {
	input := flag.String("in", "examples/demo.rotulus", "DSL 文件路径")
	outDir := flag.String("out", "output", "导出文件目录")
	frameAt := flag.Float64("frame", -1, "只渲染指定时间点（秒）的单帧 PNG")
	frameOut := flag.String("frame-out", "output/frame.png", "单帧 PNG 输出路径")
	debug := flag.String("debug", "", "排版调试 JSON 输出路径")
	dataJSON := flag.String("data", "", "绑定到 DSL 的 JSON 数据")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	var inputData any
	if *dataJSON != "" {
		if err := json.Unmarshal([]byte(*dataJSON), &inputData); err != nil {
			log.Fatal().Err(err).Msg("解析 data JSON 失败")
		}
	}

	if err := run(log, *input, *outDir, *debug, *frameAt, *frameOut, inputData); err != nil {
		log.Fatal().Err(err).Msg("运行失败")
	}
}

// run 串联解析、构建与播放器。
func run(log zerolog.Logger, inputPath, outDir, debugPath string, frameAt float64, frameOut string, data any) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("无法打开 DSL 文件 %s: %w", inputPath, err)
	}
	doc, err := dsl.Parse(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("解析 DSL 失败: %w", err)
	}

	project, err := scene.Build(doc, data)
	if err != nil {
		return fmt.Errorf("构建场景失败: %w", err)
	}

	opts := []player.Option{player.WithOutputDir(outDir)}
	// 探测时长缓存放在输出目录下，打开失败只降级为每次探测
	if cache, err := media.OpenProbeCache(filepath.Join(outDir, "probe.db")); err != nil {
		log.Warn().Err(err).Msg("打开探测缓存失败")
	} else {
		defer cache.Close()
		opts = append(opts, player.WithProbeCache(cache))
	}

	p := player.NewPlayer(filepath.Dir(inputPath), log, opts...)
	if err := p.LoadProject(project); err != nil {
		return fmt.Errorf("加载项目失败: %w", err)
	}
	defer p.Close()

	if debugPath != "" {
		if err := writeDebug(p.Model(), debugPath); err != nil {
			return err
		}
	}

	// 单帧模式：渲染指定时间点后退出
	if frameAt >= 0 {
		return writeFrame(p, frameAt, frameOut)
	}

	// 录制模式：从头导出整段视频
	if err := p.StartRecording(context.Background()); err != nil {
		return fmt.Errorf("启动录制失败: %w", err)
	}
	for p.Recording() {
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func writeFrame(p *player.Player, t float64, path string) error {
	frame, err := p.Frame(t)
	if err != nil {
		return fmt.Errorf("渲染单帧失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 PNG 文件失败: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, frame); err != nil {
		return fmt.Errorf("写入 PNG 失败: %w", err)
	}
	return nil
}

func writeDebug(model *layout.LineModel, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(model, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
