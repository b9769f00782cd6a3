package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"cvforge/internal/annexe"
	"cvforge/internal/apiclient"
	"cvforge/internal/assemble"
	"cvforge/internal/blobcache"
	"cvforge/internal/i18n"
	"cvforge/internal/resume"
	"cvforge/internal/session"
)

const defaultPollInterval = 2 * time.Second

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cvctl login <username>")
	}
	password, err := a.readPassword()
	if err != nil {
		return err
	}
	tokens, err := a.client.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	if err := a.client.Session().Save(a.sessionPath); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s\n", args[0])
	if tokens.MustChangePassword {
		fmt.Fprintln(a.out, "password change required before the account can be used")
	}
	return nil
}

// readPassword 优先读取 CVCTL_PASSWORD，否则从标准输入读一行。
func (a *app) readPassword() (string, error) {
	if password := os.Getenv("CVCTL_PASSWORD"); password != "" {
		return password, nil
	}
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	if saveErr := a.client.Session().Save(a.sessionPath); saveErr != nil {
		return saveErr
	}
	return err
}

// authenticate 在访问令牌过期时用刷新令牌续期，并回写会话文件。
func (a *app) authenticate(ctx context.Context) error {
	if a.client.Session().LoggedIn() {
		return nil
	}
	if _, err := a.client.Refresh(ctx); err != nil {
		return err
	}
	a.logger.Debug("access token refreshed")
	return a.client.Session().Save(a.sessionPath)
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) == 2 && args[0] == "-public" {
		out, err := a.client.GetPublicResume(ctx, args[1])
		if err != nil {
			return err
		}
		return a.printJSON(out)
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	if len(args) == 0 {
		docs, err := a.client.ListResumes(ctx)
		if err != nil {
			return err
		}
		for _, d := range docs {
			fmt.Fprintf(a.out, "%s\t%s\t%s\n", d.ID, d.Title, d.Slug)
		}
		return nil
	}
	out, err := a.client.GetResumeWithAnnexes(ctx, args[0])
	if err != nil {
		return err
	}
	return a.printJSON(out)
}

func (a *app) openSession(ctx context.Context, resumeID string, withImages bool) (*session.Session, error) {
	deps := session.Deps{
		Backend:    a.client,
		Translator: a.client,
	}
	if withImages {
		deps.Images = blobcache.NewResolver(a.client.BlobStore(), a.client.PreviewBaseURL())
	}
	return session.Open(ctx, deps, resumeID)
}

func (a *app) edit(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: cvctl edit <resume-id> <section> <json>")
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	s, err := a.openSession(ctx, args[0], false)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	section := session.Section(args[1])
	if err := s.Jump(section); err != nil {
		return err
	}
	if err := applySection(s, section, []byte(args[2])); err != nil {
		return err
	}
	if err := s.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s of %s\n", section, s.ID())
	return nil
}

func applySection(s *session.Session, section session.Section, raw []byte) error {
	decode := func(v any) error {
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("decode %s: %w", section, err)
		}
		return nil
	}
	switch section {
	case session.SectionPersonal:
		var v resume.PersonalInfo
		if err := decode(&v); err != nil {
			return err
		}
		return s.SetPersonalInfo(v)
	case session.SectionSummary:
		var v string
		if err := decode(&v); err != nil {
			return err
		}
		return s.SetSummary(v)
	case session.SectionExperience:
		var v []resume.Experience
		if err := decode(&v); err != nil {
			return err
		}
		return s.SetExperience(v)
	case session.SectionEducation:
		var v []resume.Education
		if err := decode(&v); err != nil {
			return err
		}
		return s.SetEducation(v)
	case session.SectionProjects:
		var v []resume.Project
		if err := decode(&v); err != nil {
			return err
		}
		return s.SetProjects(v)
	case session.SectionPublications:
		var v []resume.Publication
		if err := decode(&v); err != nil {
			return err
		}
		return s.SetPublications(v)
	case session.SectionSkills:
		var v []string
		if err := decode(&v); err != nil {
			return err
		}
		return s.SetSkills(v)
	case session.SectionInterests:
		var v []string
		if err := decode(&v); err != nil {
			return err
		}
		return s.SetInterests(v)
	case session.SectionLanguages:
		var v []resume.Language
		if err := decode(&v); err != nil {
			return err
		}
		return s.SetLanguages(v)
	case session.SectionSignature:
		var v resume.Signature
		if err := decode(&v); err != nil {
			return err
		}
		return s.SetSignature(v)
	}
	return fmt.Errorf("unknown section %q", section)
}

func (a *app) translate(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: cvctl translate <resume-id> <lang>")
	}
	lang, err := i18n.ParseLanguage(args[1])
	if err != nil {
		return err
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	s, err := a.openSession(ctx, args[0], false)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	if err := s.Translate(ctx, lang); err != nil {
		return err
	}
	if err := s.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "translated %s to %s\n", s.ID(), lang)
	return nil
}

func (a *app) annexes(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: cvctl annexes <resume-id> [annexe-id...]")
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	m := annexe.NewManager(a.client, args[0])
	if err := m.Load(ctx); err != nil {
		return err
	}

	if len(args) > 1 {
		for _, id := range m.SelectedIDs() {
			if err := m.Toggle(id); err != nil {
				return err
			}
		}
		for _, id := range args[1:] {
			if err := m.Toggle(id); err != nil {
				return err
			}
		}
		if err := m.Save(ctx); err != nil {
			return err
		}
	}

	for i, an := range m.Selected() {
		fmt.Fprintf(a.out, "%d\t%s\t%s\n", i+1, an.ID, an.Title)
	}
	for _, an := range m.Catalog() {
		if !m.IsSelected(an.ID) {
			fmt.Fprintf(a.out, "-\t%s\t%s\n", an.ID, an.Title)
		}
	}
	return nil
}

func (a *app) preview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	out := fs.String("o", "preview.html", "输出文件")
	lang := fs.String("lang", "", "预览语言（en|fr），为空时使用原文")
	resumeID, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	s, err := a.openSession(ctx, resumeID, true)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	if *lang != "" {
		target, err := i18n.ParseLanguage(*lang)
		if err != nil {
			return err
		}
		if err := s.Translate(ctx, target); err != nil {
			return err
		}
	}
	page, err := s.Preview(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, []byte(page.HTML), 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	fmt.Fprintf(a.out, "wrote %s (template %s)\n", *out, page.TemplateKey)
	return nil
}

func (a *app) final(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("final", flag.ContinueOnError)
	out := fs.String("o", "", "输出文件，默认使用 <标题>_Complete.pdf")
	remote := fs.Bool("remote", false, "交给服务端 worker 合成并下载结果")
	tmpl := fs.String("template", "", "模板 key，为空时使用简历设置")
	color := fs.String("color", "", "主题色，为空时使用简历设置")
	lang := fs.String("lang", "", "标签语言（en|fr）")
	resumeID, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}

	params := assemble.RenderParams{Template: *tmpl, AccentColor: *color}
	if *lang != "" {
		if params.Language, err = i18n.ParseLanguage(*lang); err != nil {
			return err
		}
	}

	withAnnexes, err := a.client.GetResumeWithAnnexes(ctx, resumeID)
	if err != nil {
		return err
	}
	name := *out
	if name == "" {
		name = assemble.FileName(withAnnexes.Resume.Title)
	}

	var data []byte
	if *remote {
		data, err = a.finalRemote(ctx, resumeID, params)
	} else {
		data, err = a.finalLocal(ctx, resumeID, params, withAnnexes.Annexes)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write final document: %w", err)
	}
	fmt.Fprintf(a.out, "wrote %s\n", name)
	return nil
}

func (a *app) finalLocal(ctx context.Context, resumeID string, params assemble.RenderParams, annexes []resume.Annexe) ([]byte, error) {
	assembler := assemble.New(a.client, a.client, assemble.Config{Logger: a.logger})
	data, report, err := assembler.Assemble(ctx, resumeID, params, annexes)
	if err != nil {
		return nil, err
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(os.Stderr, "skipped annexe %s (%s): %v\n", s.Annexe.ID, s.Annexe.Title, s.Err)
	}
	a.logger.Debug("final document assembled",
		slog.Int("total_pages", report.TotalPages),
		slog.Int("included", len(report.Included)),
	)
	return data, nil
}

// finalRemote 入队合成任务，轮询下载链接直到新结果出现。
func (a *app) finalRemote(ctx context.Context, resumeID string, params assemble.RenderParams) ([]byte, error) {
	previous, err := a.client.FinalPDFLink(ctx, resumeID)
	if err != nil && !finalNotReady(err) {
		return nil, err
	}
	taskID, err := a.client.RequestFinalPDF(ctx, resumeID, params)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("final document task enqueued", slog.String("task_id", taskID))

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		link, err := a.client.FinalPDFLink(ctx, resumeID)
		if err != nil && !finalNotReady(err) {
			return nil, err
		}
		if link == "" || samePresignedObject(link, previous) {
			continue
		}
		return download(ctx, link)
	}
}

// finalNotReady 对应简历还没有任何合成结果时服务端返回的 409。
func finalNotReady(err error) bool {
	return apiclient.IsStatus(err, http.StatusConflict)
}

// samePresignedObject 忽略签名参数，只比较对象路径。
func samePresignedObject(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	trim := func(s string) string {
		if i := strings.IndexByte(s, '?'); i >= 0 {
			return s[:i]
		}
		return s
	}
	return trim(a) == trim(b)
}

func download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download final document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download final document: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseWithID 允许 id 出现在标志之前或之后。
func parseWithID(fs *flag.FlagSet, args []string) (string, error) {
	var id string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if id == "" && fs.NArg() > 0 {
		id = fs.Arg(0)
	}
	if id == "" {
		return "", fmt.Errorf("usage: cvctl %s <resume-id> [flags]", fs.Name())
	}
	return id, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
