package i18n

var translations = map[string]map[string]string{
	Dutch: {
		"status_initializing":     "Schoolmaps wordt geladen...",
		"status_unauthenticated":  "Niet ingelogd.",
		"status_authenticated":    "Welkom, {name}!",
		"guest_fallback_name":     "Gast",
		"default_user_name":       "Gebruiker",
		"confirm_logout":          "Weet je zeker dat je wilt uitloggen?",
		"success_logout":          "Je bent succesvol uitgelogd.",
		"success_settings_saved":  "Instellingen opgeslagen!",
		"password_reset_sent":     "Er is een e-mail om je wachtwoord te resetten verzonden naar {email}.",
		"app_back_online_message": "Je bent weer online.",

		"error_invalid_email":             "Ongeldig e-mailadres.",
		"error_invalid_credentials":       "Onjuist e-mailadres of wachtwoord.",
		"error_email_in_use":              "Dit e-mailadres is al in gebruik.",
		"error_weak_password":             "Het wachtwoord moet minimaal 6 tekens lang zijn.",
		"error_unknown":                   "Er is een onbekende fout opgetreden.",
		"error_fill_all_fields":           "Vul alle verplichte velden in.",
		"error_enter_email_for_reset":     "Vul je e-mailadres in om je wachtwoord te resetten.",
		"error_password_reset_failed":     "Het versturen van de reset-e-mail is mislukt.",
		"error_profile_load_failed":       "Je profiel kon niet worden geladen. Log opnieuw in.",
		"error_save_settings_failed":      "Het opslaan van je instellingen is mislukt.",
		"error_save_in_progress":          "Je instellingen worden nog opgeslagen. Probeer het zo opnieuw.",
		"error_guest_action_not_allowed":  "Deze actie is niet beschikbaar in gastmodus. Maak een account aan.",
		"error_not_ready":                 "Schoolmaps is nog aan het opstarten.",
		"error_operation_failed":          "Er ging iets mis: {error}",
		"error_connection_lost":           "De verbinding met de server is verbroken.",
		"profile_picture_upload_success":  "Profielfoto geüpload!",
		"error_profile_pic_upload_failed": "Het uploaden van je profielfoto is mislukt.",
		"error_invalid_language":          "Deze taal wordt niet ondersteund.",
		"error_invalid_theme":             "Dit thema bestaat niet.",

		"error_enter_file_title":    "Geef het bestand een titel.",
		"error_select_file":         "Kies een bestand om te uploaden.",
		"success_file_added":        "Bestand toegevoegd!",
		"error_select_files_delete": "Selecteer eerst bestanden om te verwijderen.",
		"success_files_deleted":     "Bestanden verwijderd.",
		"confirm_delete_files":      "Weet je zeker dat je {count} bestand(en) wilt verwijderen?",

		"error_invalid_date":     "Ongeldige datum of tijd.",
		"error_end_before_start": "De eindtijd moet na de starttijd liggen.",
		"event_saved_success":    "Afspraak opgeslagen!",
		"event_deleted_success":  "Afspraak verwijderd.",
		"event_test":             "Toets",
		"event_presentation":     "Presentatie",
		"event_homework":         "Huiswerk",
		"event_oral":             "Mondeling",
		"event_other":            "Overig",

		"error_empty_note_title": "Geef je notitie een titel.",
		"note_added_success":     "Notitie toegevoegd!",
		"note_updated_success":   "Notitie bijgewerkt!",
		"note_deleted_success":   "Notitie verwijderd.",

		"error_empty_task":     "Een taak mag niet leeg zijn.",
		"task_added_success":   "Taak toegevoegd!",
		"task_updated_success": "Taak bijgewerkt!",
		"task_deleted_success": "Taak verwijderd.",

		"error_empty_deck_name":   "Geef je set een naam en kies een vak.",
		"deck_added_success":      "Set aangemaakt!",
		"deck_deleted_success":    "Set verwijderd.",
		"flashcard_added_success": "Kaarten toegevoegd!",
		"error_empty_flashcard":   "Vul minimaal één vraag en antwoord in.",

		"focus_session": "Focus",
		"break_session": "Pauze",
	},
	English: {
		"status_initializing":     "Loading Schoolmaps...",
		"status_unauthenticated":  "Not signed in.",
		"status_authenticated":    "Welcome, {name}!",
		"guest_fallback_name":     "Guest",
		"default_user_name":       "User",
		"confirm_logout":          "Are you sure you want to log out?",
		"success_logout":          "You have been logged out.",
		"success_settings_saved":  "Settings saved!",
		"password_reset_sent":     "A password reset email has been sent to {email}.",
		"app_back_online_message": "You are back online.",

		"error_invalid_email":             "Invalid email address.",
		"error_invalid_credentials":       "Incorrect email or password.",
		"error_email_in_use":              "This email address is already in use.",
		"error_weak_password":             "The password must be at least 6 characters long.",
		"error_unknown":                   "An unknown error occurred.",
		"error_fill_all_fields":           "Please fill in all required fields.",
		"error_enter_email_for_reset":     "Enter your email address to reset your password.",
		"error_password_reset_failed":     "Sending the reset email failed.",
		"error_profile_load_failed":       "Your profile could not be loaded. Please sign in again.",
		"error_save_settings_failed":      "Saving your settings failed.",
		"error_save_in_progress":          "Your settings are still being saved. Try again in a moment.",
		"error_guest_action_not_allowed":  "This action is not available in guest mode. Create an account.",
		"error_not_ready":                 "Schoolmaps is still starting up.",
		"error_operation_failed":          "Something went wrong: {error}",
		"error_connection_lost":           "The connection to the server was lost.",
		"profile_picture_upload_success":  "Profile picture uploaded!",
		"error_profile_pic_upload_failed": "Uploading your profile picture failed.",
		"error_invalid_language":          "This language is not supported.",
		"error_invalid_theme":             "This theme does not exist.",

		"error_enter_file_title":    "Give the file a title.",
		"error_select_file":         "Choose a file to upload.",
		"success_file_added":        "File added!",
		"error_select_files_delete": "Select files to delete first.",
		"success_files_deleted":     "Files deleted.",
		"confirm_delete_files":      "Are you sure you want to delete {count} file(s)?",

		"error_invalid_date":     "Invalid date or time.",
		"error_end_before_start": "The end time must be after the start time.",
		"event_saved_success":    "Event saved!",
		"event_deleted_success":  "Event deleted.",
		"event_test":             "Test",
		"event_presentation":     "Presentation",
		"event_homework":         "Homework",
		"event_oral":             "Oral exam",
		"event_other":            "Other",

		"error_empty_note_title": "Give your note a title.",
		"note_added_success":     "Note added!",
		"note_updated_success":   "Note updated!",
		"note_deleted_success":   "Note deleted.",

		"error_empty_task":     "A task cannot be empty.",
		"task_added_success":   "Task added!",
		"task_updated_success": "Task updated!",
		"task_deleted_success": "Task deleted.",

		"error_empty_deck_name":   "Name your deck and pick a subject.",
		"deck_added_success":      "Deck created!",
		"deck_deleted_success":    "Deck deleted.",
		"flashcard_added_success": "Cards added!",
		"error_empty_flashcard":   "Fill in at least one question and answer.",

		"focus_session": "Focus",
		"break_session": "Break",
	},
}

var subjectNames = map[string]map[string]string{
	Dutch: {
		"wiskunde":               "Wiskunde",
		"nederlands":             "Nederlands",
		"engels":                 "Engels",
		"frans":                  "Frans",
		"duits":                  "Duits",
		"geschiedenis":           "Geschiedenis",
		"aardrijkskunde":         "Aardrijkskunde",
		"biologie":               "Biologie",
		"scheikunde":             "Scheikunde",
		"natuurkunde":            "Natuurkunde",
		"economie":               "Economie",
		"informatica":            "Informatica",
		"latijn":                 "Latijn",
		"grieks":                 "Grieks",
		"kunst":                  "Kunst",
		"lichamelijke_opvoeding": "Lichamelijke opvoeding",
		"algemeen":               "Algemeen",
	},
	English: {
		"wiskunde":               "Mathematics",
		"nederlands":             "Dutch",
		"engels":                 "English",
		"frans":                  "French",
		"duits":                  "German",
		"geschiedenis":           "History",
		"aardrijkskunde":         "Geography",
		"biologie":               "Biology",
		"scheikunde":             "Chemistry",
		"natuurkunde":            "Physics",
		"economie":               "Economics",
		"informatica":            "Computer science",
		"latijn":                 "Latin",
		"grieks":                 "Greek",
		"kunst":                  "Art",
		"lichamelijke_opvoeding": "Physical education",
		"algemeen":               "General",
	},
}
