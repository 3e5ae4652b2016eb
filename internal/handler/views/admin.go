package views

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	"github.com/pavelanni/classroom/internal/model"
)

// AdminUsersPage lists accounts with toggle and delete actions, plus a
// create-user form and the global quiz controls.
func AdminUsersPage(users []model.User, msg, errMsg string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		body := component(func(ctx context.Context, w *writer) {
			notice(w, msg, errMsg)
			w.raw(`<table><tr><th>`)
			w.text(t(ctx, "Username"))
			w.raw(`</th><th>`)
			w.text(t(ctx, "Nickname"))
			w.raw(`</th><th>`)
			w.text(t(ctx, "Role"))
			w.raw(`</th><th>`)
			w.text(t(ctx, "Status"))
			w.raw(`</th><th>`)
			w.text(t(ctx, "Expires"))
			w.raw(`</th><th>`)
			w.text(t(ctx, "Actions"))
			w.raw(`</th></tr>`)
			for _, u := range users {
				w.raw(`<tr><td>`)
				link(ctx, w, "/reports/"+u.Username, u.Username)
				w.raw(`</td><td>`)
				w.text(u.Nickname)
				w.raw(`</td><td>`)
				if u.Role == model.UserRoleAdmin {
					w.text(t(ctx, "Administrator"))
				} else {
					w.text(t(ctx, "Student"))
				}
				w.raw(`</td><td>`)
				if u.Active {
					w.text(t(ctx, "Active"))
				} else {
					w.text(t(ctx, "Inactive"))
				}
				w.raw(`</td><td>`)
				if u.ExpiresAt != nil {
					w.text(u.ExpiresAt.Format("2006-01-02"))
				} else {
					w.text(t(ctx, "Never"))
				}
				w.raw(`</td><td>`)
				form(ctx, w, "/admin/users/"+u.Username+"/toggle", false, "")
				w.raw(`<button type="submit">`)
				w.text(t(ctx, "Toggle"))
				w.raw(`</button></form>`)
				form(ctx, w, "/admin/users/"+u.Username+"/delete", false, t(ctx, "Delete")+" "+u.Username+"?")
				w.raw(`<button type="submit">`)
				w.text(t(ctx, "Delete"))
				w.raw(`</button></form></td></tr>`)
			}
			w.raw(`</table><h2>`)
			w.text(t(ctx, "CreateUser"))
			w.raw(`</h2>`)
			form(ctx, w, "/admin/users", false, "")
			input(w, t(ctx, "Username"), "username", "text", "", true)
			input(w, t(ctx, "Nickname"), "nickname", "text", "", false)
			input(w, t(ctx, "Password"), "password", "password", "", true)
			w.raw(`<label>`)
			w.text(t(ctx, "Role"))
			w.raw(` <select name="role"><option value="student">`)
			w.text(t(ctx, "Student"))
			w.raw(`</option><option value="admin">`)
			w.text(t(ctx, "Administrator"))
			w.raw(`</option></select></label><button type="submit">`)
			w.text(t(ctx, "CreateUser"))
			w.raw(`</button></form><h2>`)
			w.text(t(ctx, "Quiz"))
			w.raw(`</h2>`)
			form(ctx, w, "/admin/reset", false, t(ctx, "ResetConfirm"))
			w.raw(`<button type="submit">`)
			w.text(t(ctx, "ResetQuiz"))
			w.raw(`</button></form><p>`)
			link(ctx, w, "/admin/reports/export", t(ctx, "ExportReports"))
			w.raw(`</p>`)
		})
		w.render(ctx, Layout(t(ctx, "Users"), body))
	})
}

func questionFields(ctx context.Context, w *writer, q model.Question) {
	w.raw(`<label>`)
	w.text(t(ctx, "Content"))
	w.raw(` <textarea name="content" rows="2" cols="60" required>`)
	w.text(q.Content)
	w.raw(`</textarea></label>`)
	for _, o := range model.Options {
		input(w, string(o), "option_"+string(o), "text", q.OptionText(o), true)
	}
	w.raw(`<label>`)
	w.text(t(ctx, "Correct"))
	w.raw(` <select name="correct">`)
	for _, o := range model.Options {
		w.raw(`<option`)
		if o == q.Correct {
			w.raw(` selected`)
		}
		w.raw(`>`)
		w.text(string(o))
		w.raw(`</option>`)
	}
	w.raw(`</select></label>`)
}

// AdminQuestionsPage shows the full bank with answer keys, one edit form
// per question, an add form and the bank import form.
func AdminQuestionsPage(questions []model.Question, msg, errMsg string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		body := component(func(ctx context.Context, w *writer) {
			notice(w, msg, errMsg)
			for i, q := range questions {
				id := strconv.FormatInt(q.ID, 10)
				w.raw(`<details><summary>`)
				w.textf("%d. %s [%s]", i+1, q.Content, q.Correct)
				w.raw(`</summary>`)
				form(ctx, w, "/admin/questions/"+id, false, "")
				questionFields(ctx, w, q)
				w.raw(`<button type="submit">`)
				w.text(t(ctx, "EditQuestion"))
				w.raw(`</button></form>`)
				form(ctx, w, "/admin/questions/"+id+"/delete", false, t(ctx, "Delete")+"?")
				w.raw(`<button type="submit">`)
				w.text(t(ctx, "Delete"))
				w.raw(`</button></form></details>`)
			}
			w.raw(`<h2>`)
			w.text(t(ctx, "AddQuestion"))
			w.raw(`</h2>`)
			form(ctx, w, "/admin/questions", false, "")
			questionFields(ctx, w, model.Question{Correct: model.OptionA})
			w.raw(`<button type="submit">`)
			w.text(t(ctx, "AddQuestion"))
			w.raw(`</button></form><h2>`)
			w.text(t(ctx, "ImportQuestions"))
			w.raw(`</h2>`)
			form(ctx, w, "/admin/questions/import", true, "")
			w.raw(`<input type="file" name="questions_file" accept=".json,.yaml,.yml" required><button type="submit">`)
			w.text(t(ctx, "Import"))
			w.raw(`</button></form>`)
		})
		w.render(ctx, Layout(t(ctx, "Questions"), body))
	})
}

// AdminVideosPage lists videos with delete buttons and an upload form.
func AdminVideosPage(videos []model.Video, msg, errMsg string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		body := component(func(ctx context.Context, w *writer) {
			notice(w, msg, errMsg)
			if len(videos) == 0 {
				w.raw(`<p>`)
				w.text(t(ctx, "NoVideos"))
				w.raw(`</p>`)
			} else {
				w.raw(`<table>`)
				for _, v := range videos {
					w.raw(`<tr><td>`)
					w.text(v.Title)
					w.raw(`</td><td>`)
					w.text(v.UploadedBy)
					w.raw(`</td><td>`)
					w.text(v.UploadedAt.Format("2006-01-02 15:04"))
					w.raw(`</td><td>`)
					form(ctx, w, "/admin/videos/"+strconv.FormatInt(v.ID, 10)+"/delete", false, t(ctx, "Delete")+" "+v.Title+"?")
					w.raw(`<button type="submit">`)
					w.text(t(ctx, "Delete"))
					w.raw(`</button></form></td></tr>`)
				}
				w.raw(`</table>`)
			}
			w.raw(`<h2>`)
			w.text(t(ctx, "UploadVideo"))
			w.raw(`</h2>`)
			form(ctx, w, "/admin/videos", true, "")
			input(w, t(ctx, "Title"), "title", "text", "", true)
			w.raw(`<label>`)
			w.text(t(ctx, "File"))
			w.raw(` <input type="file" name="video" accept="video/mp4,video/x-msvideo,video/quicktime,video/webm" required></label><button type="submit">`)
			w.text(t(ctx, "Upload"))
			w.raw(`</button></form>`)
		})
		w.render(ctx, Layout(t(ctx, "Videos"), body))
	})
}
