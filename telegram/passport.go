package telegram

// PassportData carries Telegram Passport data shared with the bot by the user.
// The elements stay encrypted; decrypting them needs the bot's private key.
type PassportData struct {
	Data        []EncryptedPassportElement `json:"data"`
	Credentials EncryptedCredentials       `json:"credentials"`
}

// Passport element types.
const (
	PassportPersonalDetails       = "personal_details"
	PassportPassport              = "passport"
	PassportDriverLicense         = "driver_license"
	PassportIdentityCard          = "identity_card"
	PassportInternalPassport      = "internal_passport"
	PassportAddress               = "address"
	PassportUtilityBill           = "utility_bill"
	PassportBankStatement         = "bank_statement"
	PassportRentalAgreement       = "rental_agreement"
	PassportPassportRegistration  = "passport_registration"
	PassportTemporaryRegistration = "temporary_registration"
	PassportPhoneNumber           = "phone_number"
	PassportEmail                 = "email"
)

// EncryptedPassportElement is one document or piece of data shared through Telegram Passport.
type EncryptedPassportElement struct {
	Type        string         `json:"type"`
	Hash        string         `json:"hash"`
	Data        string         `json:"data,omitempty"`
	PhoneNumber string         `json:"phone_number,omitempty"`
	Email       string         `json:"email,omitempty"`
	Files       []PassportFile `json:"files,omitempty"`
	FrontSide   *PassportFile  `json:"front_side,omitempty"`
	ReverseSide *PassportFile  `json:"reverse_side,omitempty"`
	Selfie      *PassportFile  `json:"selfie,omitempty"`
	Translation []PassportFile `json:"translation,omitempty"`
}

// EncryptedCredentials holds the data required to decrypt and authenticate passport elements.
type EncryptedCredentials struct {
	Data   string `json:"data"`
	Hash   string `json:"hash"`
	Secret string `json:"secret"`
}

// PassportFile is a file uploaded to Telegram Passport.
type PassportFile struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size"`
	FileDate     int64  `json:"file_date"`
}

// Passport element error sources.
const (
	PassportErrorData             = "data"
	PassportErrorFrontSide        = "front_side"
	PassportErrorReverseSide      = "reverse_side"
	PassportErrorSelfie           = "selfie"
	PassportErrorFile             = "file"
	PassportErrorFiles            = "files"
	PassportErrorTranslationFile  = "translation_file"
	PassportErrorTranslationFiles = "translation_files"
	PassportErrorUnspecified      = "unspecified"
)

// PassportElementError is an error in a Telegram Passport element submitted
// by the user. Source selects which hash fields are meaningful.
type PassportElementError struct {
	Source      string   `json:"source"`
	Type        string   `json:"type"`
	Message     string   `json:"message"`
	FieldName   string   `json:"field_name,omitempty"`
	DataHash    string   `json:"data_hash,omitempty"`
	FileHash    string   `json:"file_hash,omitempty"`
	FileHashes  []string `json:"file_hashes,omitempty"`
	ElementHash string   `json:"element_hash,omitempty"`
}

// DataFieldError reports an error in a data field of an element.
func DataFieldError(elementType, fieldName, dataHash, message string) PassportElementError {
	return PassportElementError{
		Source:    PassportErrorData,
		Type:      elementType,
		FieldName: fieldName,
		DataHash:  dataHash,
		Message:   message,
	}
}

// FileError reports an error in one document scan. source is one of
// front_side, reverse_side, selfie, file or translation_file.
func FileError(source, elementType, fileHash, message string) PassportElementError {
	return PassportElementError{Source: source, Type: elementType, FileHash: fileHash, Message: message}
}

// FilesError reports an error in a list of scans. source is files or translation_files.
func FilesError(source, elementType string, fileHashes []string, message string) PassportElementError {
	return PassportElementError{Source: source, Type: elementType, FileHashes: fileHashes, Message: message}
}

// UnspecifiedError reports an error in an unspecified place of an element.
func UnspecifiedError(elementType, elementHash, message string) PassportElementError {
	return PassportElementError{
		Source:      PassportErrorUnspecified,
		Type:        elementType,
		ElementHash: elementHash,
		Message:     message,
	}
}
