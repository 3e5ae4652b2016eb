package views

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/classroom/internal/i18n"
	"github.com/pavelanni/classroom/internal/model"
)

// HomePage shows the user's quiz state and shortcuts.
func HomePage(u *model.User, state string, questionCount int) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		name := u.Nickname
		if name == "" {
			name = u.Username
		}
		body := component(func(ctx context.Context, w *writer) {
			w.raw(`<img src="`)
			w.text(path(ctx, "/avatars/"+u.Avatar))
			w.raw(`" alt="" width="64" height="64"><p>`)
			switch state {
			case "locked":
				w.text(t(ctx, "QuizLocked"))
			case "in_progress":
				w.text(t(ctx, "QuizInProgress"))
			default:
				w.text(t(ctx, "QuizNotStarted"))
			}
			w.raw(` `)
			w.text(appI18n.Tp(ctx, "QuestionsAvailable", questionCount))
			w.raw(`</p><p>`)
			link(ctx, w, "/videos", t(ctx, "Videos"))
			w.raw(` `)
			link(ctx, w, "/quiz", t(ctx, "Quiz"))
			w.raw(` `)
			link(ctx, w, "/reports", t(ctx, "Reports"))
			w.raw(`</p>`)
		})
		w.render(ctx, Layout(appI18n.Td(ctx, "Welcome", map[string]any{"Name": name}), body))
	})
}

// VideosPage lists the videos with an inline player each. Playback
// position is posted to the progress API every ten seconds.
func VideosPage(videos []model.Video, progress map[int64]string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		body := component(func(ctx context.Context, w *writer) {
			if len(videos) == 0 {
				w.raw(`<p>`)
				w.text(t(ctx, "NoVideos"))
				w.raw(`</p>`)
				return
			}
			for _, v := range videos {
				id := strconv.FormatInt(v.ID, 10)
				w.raw(`<section><h2>`)
				w.text(v.Title)
				w.raw(`</h2><video controls preload="metadata" width="640" data-video-id="`)
				w.text(id)
				w.raw(`" data-progress="`)
				w.text(progress[v.ID])
				w.raw(`" src="`)
				w.text(path(ctx, "/videos/"+id+"/stream"))
				w.raw(`"></video><p>`)
				w.text(t(ctx, "VideoProgress"))
				w.raw(`: <span class="progress">`)
				w.text(progress[v.ID])
				w.raw(`</span></p></section>`)
			}
			w.raw(apiScript)
			w.raw(`<script>
document.querySelectorAll("video[data-video-id]").forEach(v=>{
  const start=parseFloat(v.dataset.progress);
  if(start>0)v.addEventListener("loadedmetadata",()=>{v.currentTime=start},{once:true});
  let last=0;
  v.addEventListener("timeupdate",()=>{
    if(Math.abs(v.currentTime-last)<10)return;
    last=v.currentTime;
    const p=v.currentTime.toFixed(1);
    postJSON("/api/progress",{video_id:parseInt(v.dataset.videoId),progress:p})
      .then(()=>{v.parentElement.querySelector(".progress").textContent=p}).catch(()=>{});
  });
});
</script>`)
		})
		w.render(ctx, Layout(t(ctx, "Videos"), body))
	})
}

// QuizPage renders the questions without answer keys. Each choice is
// posted immediately; the result is shown next to the question.
func QuizPage(questions []model.PublicQuestion, locked bool) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		body := component(func(ctx context.Context, w *writer) {
			if locked {
				w.raw(`<p class="notice">`)
				w.text(t(ctx, "QuizLocked"))
				w.raw(`</p>`)
				return
			}
			if len(questions) == 0 {
				w.raw(`<p>`)
				w.text(t(ctx, "NoQuestions"))
				w.raw(`</p>`)
				return
			}
			w.raw(`<p>`)
			w.text(appI18n.Tp(ctx, "QuestionsAvailable", len(questions)))
			w.raw(`</p>`)
			for i, q := range questions {
				id := strconv.FormatInt(q.ID, 10)
				w.raw(`<fieldset data-question-id="`)
				w.text(id)
				w.raw(`"><legend>`)
				w.textf("%d. %s", i+1, q.Content)
				w.raw(`</legend>`)
				for _, o := range model.Options {
					w.raw(`<label><input type="radio" name="q`)
					w.text(id)
					w.raw(`" value="`)
					w.text(string(o))
					w.raw(`"> `)
					w.textf("%s. %s", o, q.Options[o])
					w.raw(`</label>`)
				}
				w.raw(`<span class="result"></span></fieldset>`)
			}
			w.raw(`<p><button id="finish" type="button" data-confirm="`)
			w.text(t(ctx, "FinishConfirm"))
			w.raw(`" data-correct="`)
			w.text(t(ctx, "CorrectAnswer"))
			w.raw(`" data-wrong="`)
			w.text(t(ctx, "WrongAnswer"))
			w.raw(`">`)
			w.text(t(ctx, "FinishQuiz"))
			w.raw(`</button></p>`)
			w.raw(apiScript)
			w.raw(`<script>
const fin=document.getElementById("finish");
const labels={true:fin.dataset.correct,false:fin.dataset.wrong};
document.querySelectorAll("fieldset[data-question-id]").forEach(fs=>{
  fs.addEventListener("change",e=>{
    postJSON("/api/quiz/answer",{question_id:parseInt(fs.dataset.questionId),option:e.target.value})
      .then(r=>{const s=fs.querySelector(".result");s.textContent=labels[r.is_correct];s.className="result "+(r.is_correct?"correct":"wrong")});
  });
});
fin.addEventListener("click",()=>{
  if(!confirm(fin.dataset.confirm))return;
  postJSON("/api/quiz/finish",{}).then(()=>{location.href=basePath()+"/reports"});
});
</script>`)
		})
		w.render(ctx, Layout(t(ctx, "Quiz"), body))
	})
}

// ReportsPage lists one user's reports.
func ReportsPage(owner string, reports []model.ReportInfo) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		body := component(func(ctx context.Context, w *writer) {
			if len(reports) == 0 {
				w.raw(`<p>`)
				w.text(t(ctx, "NoReports"))
				w.raw(`</p>`)
				return
			}
			w.raw(`<ul>`)
			for _, rep := range reports {
				base := "/reports/" + owner + "/" + rep.Name
				w.raw(`<li>`)
				w.text(appI18n.Td(ctx, "ReportN", map[string]any{"N": rep.Sequence}))
				w.raw(` (`)
				w.text(rep.CreatedAt.Format("2006-01-02 15:04"))
				w.raw(`) `)
				link(ctx, w, base+"?format=html", t(ctx, "ViewReport"))
				w.raw(` `)
				link(ctx, w, base, t(ctx, "DownloadReport"))
				w.raw(`</li>`)
			}
			w.raw(`</ul>`)
		})
		w.render(ctx, Layout(t(ctx, "Reports")+": "+owner, body))
	})
}

// ReportPage shows a rendered report. html must already be sanitized
// Markdown output.
func ReportPage(owner, name, html string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		body := component(func(ctx context.Context, w *writer) {
			w.raw(`<article>`)
			w.render(ctx, templ.Raw(html))
			w.raw(`</article><p>`)
			link(ctx, w, "/reports/"+owner, t(ctx, "Reports"))
			w.raw(`</p>`)
		})
		w.render(ctx, Layout(owner+" / "+name, body))
	})
}

// ProfilePage shows nickname and avatar forms plus password change.
func ProfilePage(u *model.User, msg, errMsg string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		body := component(func(ctx context.Context, w *writer) {
			notice(w, msg, errMsg)
			w.raw(`<img src="`)
			w.text(path(ctx, "/avatars/"+u.Avatar))
			w.raw(`" alt="" width="96" height="96">`)
			form(ctx, w, "/profile", true, "")
			input(w, t(ctx, "Nickname"), "nickname", "text", u.Nickname, false)
			w.raw(`<label>`)
			w.text(t(ctx, "Avatar"))
			w.raw(` <input type="file" name="avatar" accept="image/png,image/jpeg,image/gif,image/webp"></label><button type="submit">`)
			w.text(t(ctx, "Save"))
			w.raw(`</button></form><h2>`)
			w.text(t(ctx, "ChangePassword"))
			w.raw(`</h2>`)
			form(ctx, w, "/password", false, "")
			input(w, t(ctx, "OldPassword"), "old_password", "password", "", true)
			input(w, t(ctx, "NewPassword"), "new_password", "password", "", true)
			w.raw(`<button type="submit">`)
			w.text(t(ctx, "Save"))
			w.raw(`</button></form>`)
		})
		w.render(ctx, Layout(t(ctx, "Profile"), body))
	})
}
