package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"cvforge/internal/resume"
)

func (a *app) register(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cvctl register <username>")
	}
	password, err := a.readPassword()
	if err != nil {
		return err
	}
	if err := a.client.Register(ctx, args[0], password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s, run `cvctl login %s` to start\n", args[0], args[0])
	return nil
}

func (a *app) create(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cvctl new <title>")
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	doc, err := a.client.CreateResume(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\n", doc.ID, doc.Title)
	return nil
}

func (a *app) clone(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cvctl clone <resume-id>")
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	doc, err := a.client.CloneResume(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\n", doc.ID, doc.Title)
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cvctl rm <resume-id>")
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	if err := a.client.DeleteResume(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", args[0])
	return nil
}

func (a *app) rename(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: cvctl rename <resume-id> <title>")
	}
	title := strings.TrimSpace(args[1])
	if title == "" {
		return errors.New("title must not be empty")
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	doc, err := a.client.RenameResume(ctx, args[0], title)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\n", doc.ID, doc.Title)
	return nil
}

// importText 把纯文本简历交给 AI 结构化为一份新简历。
func (a *app) importText(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: cvctl import <title> <file|->")
	}
	text, err := a.readInput(args[1])
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(text)) == "" {
		return errors.New("resume text is empty")
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	id, err := a.client.ImportResumeText(ctx, args[0], string(text))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "imported %s\n", id)
	return nil
}

func (a *app) enhance(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cvctl enhance <text|->")
	}
	text := args[0]
	if text == "-" {
		data, err := io.ReadAll(a.in)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("job description is empty")
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	enhanced, err := a.client.EnhanceJobDescription(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, enhanced)
	return nil
}

// annexe 管理附件库本身；简历上的附件选择由 annexes 命令负责。
func (a *app) annexe(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: cvctl annexe upload <file.pdf> [title] | annexe rm <annexe-id>")
	}
	switch args[0] {
	case "upload":
		if len(args) < 2 || len(args) > 3 {
			return errors.New("usage: cvctl annexe upload <file.pdf> [title]")
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read annexe: %w", err)
		}
		filename := filepath.Base(args[1])
		title := strings.TrimSuffix(filename, filepath.Ext(filename))
		if len(args) == 3 {
			title = args[2]
		}
		if err := a.authenticate(ctx); err != nil {
			return err
		}
		created, err := a.client.UploadAnnexe(ctx, title, filename, data)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s\t%s\t%d bytes\n", created.ID, created.Title, created.Size)
		return nil
	case "rm":
		if len(args) != 2 {
			return errors.New("usage: cvctl annexe rm <annexe-id>")
		}
		if err := a.authenticate(ctx); err != nil {
			return err
		}
		if err := a.client.DeleteAnnexe(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted annexe %s\n", args[1])
		return nil
	}
	return fmt.Errorf("unknown annexe action %q", args[0])
}

// publish 切换公开状态并打印分享地址。
func (a *app) publish(ctx context.Context, args []string) error {
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return errors.New("usage: cvctl publish <resume-id> on|off")
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	s, err := a.openSession(ctx, args[0], false)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	public := args[1] == "on"
	if err := s.SetPublic(ctx, public); err != nil {
		return err
	}
	if public {
		fmt.Fprintf(a.out, "public at %s\n", s.ShareURL(a.client.BaseURL()))
	} else {
		fmt.Fprintf(a.out, "%s is private\n", s.ID())
	}
	return nil
}

// slug 设置自定义分享路径，传入空字符串清除。
func (a *app) slug(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New(`usage: cvctl slug <resume-id> <slug|"">`)
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	s, err := a.openSession(ctx, args[0], false)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	if err := s.SetSlug(ctx, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "share url %s\n", s.ShareURL(a.client.BaseURL()))
	return nil
}

// appearance 只保存模板与主题色，不影响其他字段。
func (a *app) appearance(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: cvctl appearance <resume-id> <template> [color]")
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	s, err := a.openSession(ctx, args[0], false)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	color := s.Draft().AccentColor
	if len(args) == 3 {
		color = args[2]
	}
	if err := s.PersistAppearance(ctx, args[1], color); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "template %s, accent %s\n", args[1], color)
	return nil
}

// image 替换或移除头像与签名图片，随完整草稿一起保存。
func (a *app) image(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	removeBG := fs.Bool("remove-bg", false, "上传时去除背景")
	remove := fs.Bool("remove", false, "移除图片")
	if len(args) < 2 {
		return errors.New("usage: cvctl image <resume-id> photo|signature [-remove-bg] [-remove] [file]")
	}
	resumeID, slot := args[0], args[1]
	if slot != "photo" && slot != "signature" {
		return fmt.Errorf("unknown image slot %q", slot)
	}
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	var img resume.Image
	switch {
	case *remove:
	case fs.NArg() == 1:
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		contentType := http.DetectContentType(data)
		if !strings.HasPrefix(contentType, "image/") {
			return fmt.Errorf("%s is not an image (%s)", fs.Arg(0), contentType)
		}
		img = resume.PendingImage(data, filepath.Base(fs.Arg(0)), contentType)
	default:
		return errors.New("usage: cvctl image <resume-id> photo|signature [-remove-bg] [-remove] [file]")
	}

	if err := a.authenticate(ctx); err != nil {
		return err
	}
	s, err := a.openSession(ctx, resumeID, false)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	if slot == "photo" {
		err = s.SetImage(img, *removeBG)
	} else {
		err = s.SetSignatureImage(img, *removeBG)
	}
	if err != nil {
		return err
	}
	if err := s.Save(ctx); err != nil {
		return err
	}

	saved := s.Draft().PersonalInfo.Image
	if slot == "signature" {
		saved = s.Draft().Signature.Image
	}
	if saved.IsNone() {
		fmt.Fprintf(a.out, "removed %s of %s\n", slot, s.ID())
	} else {
		fmt.Fprintf(a.out, "%s of %s at %s\n", slot, s.ID(), saved.URL())
	}
	return nil
}

// readInput 读取文件内容，"-" 表示标准输入。
func (a *app) readInput(name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(a.in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
