package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"schoolmaps/internal/localstate"
	"schoolmaps/internal/pkg/i18n"
	"schoolmaps/internal/pkg/validate"
	"schoolmaps/internal/pkg/wire"
)

// RegistrationForm is everything a new account needs.
type RegistrationForm struct {
	Name           string   `json:"name" validate:"notblank"`
	Email          string   `json:"email" validate:"notblank"`
	Password       string   `json:"password" validate:"required"`
	Subjects       []string `json:"subjects" validate:"min=1,dive,notblank"`
	SchoolName     string   `json:"schoolName" validate:"notblank"`
	ClassName      string   `json:"className" validate:"notblank"`
	EducationLevel string   `json:"educationLevel" validate:"notblank"`
	Language       string   `json:"language"`
}

// SignIn authenticates with email and password. The resulting identity arrives through
// the provider's stream.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return c.invalid("error_fill_all_fields")
	}

	if _, err := c.auth.SignIn(ctx, email, password); err != nil {
		c.notify(AuthErrorKey(err), nil)
		return err
	}
	return nil
}

// Register creates the account and writes its full profile document.
func (c *Controller) Register(ctx context.Context, form RegistrationForm) error {
	form.Email = strings.TrimSpace(form.Email)
	if _, err := validate.Struct(form); err != nil {
		return c.invalid("error_fill_all_fields")
	}

	id, err := c.auth.Register(ctx, form.Email, form.Password, strings.TrimSpace(form.Name))
	if err != nil {
		c.notify(AuthErrorKey(err), nil)
		return err
	}

	name := strings.TrimSpace(form.Name)
	p := Profile{
		UID:                id.UID,
		Email:              form.Email,
		UserName:           name,
		ProfilePictureURL:  AvatarURL(name, 128),
		CreatedAt:          c.now(),
		SelectedSubjects:   subjectSet(form.Subjects),
		SchoolName:         strings.TrimSpace(form.SchoolName),
		ClassName:          strings.TrimSpace(form.ClassName),
		EducationLevel:     form.EducationLevel,
		LanguagePreference: language(form.Language),
		ThemePreference:    defaultTheme,
	}

	if err := c.profiles.MergeWrite(ctx, id.UID, document(p)); err != nil {
		c.logger.Error().Err(err).Str("uid", id.UID).Msg("writing new profile failed")
		c.notify("error_unknown", nil)
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// SendPasswordReset asks the provider to mail a reset link.
func (c *Controller) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return c.invalid("error_enter_email_for_reset")
	}

	if err := c.auth.SendPasswordReset(ctx, email); err != nil {
		c.notify(AuthErrorKey(err), nil)
		return err
	}
	c.notify("password_reset_sent", map[string]any{"email": email})
	return nil
}

// EnterGuest starts a local-only session from the saved guest fragment.
func (c *Controller) EnterGuest() error {
	var rejected error
	err := c.do(func() {
		if c.status != Unauthenticated {
			rejected = ErrNotReady
			return
		}

		rec, err := c.local.Load()
		if err != nil {
			c.logger.Warn().Err(err).Msg("loading guest profile failed")
		}
		p := guestProfile(rec)

		c.unsubscribeProfile()
		c.epoch++
		c.guest = true
		c.identity = nil
		c.user = &p
		c.status = Authenticated
		c.remember(p.ThemePreference, p.LanguagePreference)
		c.publish()
	})
	if err != nil {
		return err
	}
	if rejected != nil {
		c.notify("error_not_ready", nil)
	}
	return rejected
}

// Logout ends the session. Guests are dropped locally; real sessions sign out with the
// provider and get their confirmation once the signed-out identity arrives.
func (c *Controller) Logout(ctx context.Context) error {
	var guest, active bool
	err := c.do(func() {
		if c.status != Authenticated {
			return
		}
		active = true
		if c.guest {
			guest = true
			c.epoch++
			c.guest = false
			c.user = nil
			c.status = Unauthenticated
			c.publish()
		}
	})
	if err != nil || !active || guest {
		return err
	}

	if err := c.local.Update(func(r *localstate.Record) { r.PendingLogoutNotice = true }); err != nil {
		c.logger.Warn().Err(err).Msg("saving logout marker failed")
	}

	if err := c.auth.SignOut(ctx); err != nil {
		_, _ = localstate.TakePendingLogoutNotice(c.local)
		c.notify(AuthErrorKey(err), nil)
		return err
	}
	return nil
}

// UpdateProfile applies patch optimistically and persists it. On failure the previous
// profile is restored. Only one update may be in flight.
func (c *Controller) UpdateProfile(ctx context.Context, patch wire.ProfileDocument) error {
	patch.UID = nil
	patch.CreatedAt = nil
	if patch.SelectedSubjects != nil {
		patch.SelectedSubjects = subjectSet(patch.SelectedSubjects)
	}
	if patch.LanguagePreference != nil && !i18n.Supported(*patch.LanguagePreference) {
		return c.invalid("error_invalid_language")
	}
	if patch.ThemePreference != nil && !i18n.ValidTheme(*patch.ThemePreference) {
		return c.invalid("error_invalid_theme")
	}

	var (
		prev     Profile
		uid      string
		guest    bool
		epoch    uint64
		rejected error
	)
	err := c.do(func() {
		switch {
		case c.status != Authenticated || c.user == nil:
			rejected = ErrNotReady
			return
		case c.saving:
			rejected = ErrUpdateInFlight
			return
		}

		prev = c.user.Clone()
		next := prev.Apply(patch)
		c.user = &next
		c.saving = true
		uid, guest, epoch = prev.UID, c.guest, c.epoch
		c.publish()
	})
	if err != nil {
		return err
	}
	switch {
	case errors.Is(rejected, ErrUpdateInFlight):
		c.notify("error_save_in_progress", nil)
		return rejected
	case rejected != nil:
		c.notify("error_not_ready", nil)
		return rejected
	}

	var saveErr error
	if guest {
		saveErr = c.local.Update(func(r *localstate.Record) {
			base := document(GuestDefaults())
			if r.Guest != nil {
				base = base.Merge(*r.Guest)
			}
			merged := base.Merge(patch)
			r.Guest = &merged
			r.Theme = deref(merged.ThemePreference)
			r.Language = deref(merged.LanguagePreference)
		})
	} else {
		saveErr = c.profiles.MergeWrite(ctx, uid, patch)
	}

	_ = c.do(func() {
		c.saving = false
		if saveErr != nil && c.epoch == epoch {
			c.user = &prev
			c.publish()
		}
	})

	if saveErr != nil {
		c.logger.Error().Err(saveErr).Str("uid", uid).Bool("guest", guest).Msg("saving profile failed")
		c.notify("error_save_settings_failed", nil)
		return fmt.Errorf("save profile: %w", saveErr)
	}
	if guest {
		c.notify("success_settings_saved", nil)
	}
	return nil
}

// UploadProfilePicture stores data as the user's picture and points the profile at it.
func (c *Controller) UploadProfilePicture(ctx context.Context, name string, data []byte) error {
	var (
		uid    string
		guest  bool
		active bool
	)
	if err := c.do(func() {
		if c.status == Authenticated && c.user != nil {
			active, guest, uid = true, c.guest, c.user.UID
		}
	}); err != nil {
		return err
	}

	switch {
	case !active:
		c.notify("error_not_ready", nil)
		return ErrNotReady
	case guest:
		c.notify("error_guest_action_not_allowed", nil)
		return ErrGuestNotAllowed
	}

	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" || len(data) == 0 {
		return c.invalid("error_profile_pic_upload_failed")
	}

	url, err := c.blobs.Put(ctx, path.Join("profilePictures", uid, name), data)
	if err == nil {
		err = c.profiles.MergeWrite(ctx, uid, wire.ProfileDocument{ProfilePictureURL: &url})
	}
	if err != nil {
		c.logger.Error().Err(err).Str("uid", uid).Msg("profile picture upload failed")
		c.notify("error_profile_pic_upload_failed", nil)
		return err
	}

	c.notify("profile_picture_upload_success", nil)
	return nil
}

func (c *Controller) invalid(key string) error {
	c.notify(key, nil)
	return &ValidationError{Key: key}
}
