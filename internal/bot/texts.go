package bot

// Messages are sent with HTML parse mode; interpolated values must be escaped.
const (
	helpText = `The bot is driven by the buttons under its messages. Buttons stop working after a long pause; the commands below are available at any time.

/start - start a dialog with the bot
/menu - open your menu
/cancel - cancel the current command and stop waiting for input
/help - show this help

Text starting with '/' is treated as a command, so do not enter passwords or API keys that start with it.

Service command:
/sign_out - sign in again, e.g. to change your role or refresh your username`

	textChooseRole    = "Choose your role:"
	textAskUsername   = "Enter your username:"
	textAskPassword   = "Enter your password:"
	textPasswordGot   = "Password received. Please wait."
	textLoggedAdmin   = "✅ You are signed in as Admin."
	textWrongCreds    = "❌ Wrong username or password.\nEnter the password again?"
	textAskAPIKey     = "Enter the API key 🔑 of your shop:"
	textAPIKeyGot     = "API key received. Please wait."
	textLoggedSeller  = "✅ You are signed in as Seller."
	textWrongAPIKey   = "❌ Unknown API key 🔑, please enter it again:"
	textUserMenu      = "Main menu (%s: %s):"
	textSubscription  = "Subscription of <code>%s</code>: %s"
	textPayMenu       = "The bot is currently free to use."
	textAddShop       = "Add a shop by API key.\nEnter the API key 🔑:"
	textShopAdded     = "✅ Shop <code>%s</code> added."
	textUnlinkShop    = "Unlink a shop:"
	textConfirmUnlink = "Unlink shop <code>%s</code>?"
	textShopUnlinked  = "Shop %s unlinked."
	textShopList      = "Available shops and their activity:"
	textShopMenu      = "Shop: <code>%s</code>"
	textShopInfo      = `<b>Shop details:</b>

Name:
  <code>%s</code>
Vendor:
  <code>%s</code>
Active: %s
Update prices: %s
Individual updating time: %s`
	textActivate      = "Shop: <code>%s</code>\nActive: %s"
	textPriceUpdating = "Shop: <code>%s</code>\nPrice updating: %s"

	textBan            = "🚫 You are banned. Please contact support."
	textUnban          = "🎉 You are unbanned!"
	textNotActive      = "🔒 Your account is not active. Subscribe to use the service."
	textInvalidButton  = "Sorry, this keyboard is no longer active 😕 Press /start to resume the dialog."
	textCancel         = "Command cancelled. The bot no longer waits for input."
	textUselessCancel  = "Nothing to cancel. The bot was not waiting for input."
	textUnexpectedCmd  = "There is no such command. Use /help to see the list of commands."
	textUnexpectedText = "The bot is not waiting for any text now. Use /menu to open your menu."
	textInternalError  = "An error occurred while processing your request. Please press /start and try again."
	textErrorReport    = "An error occurred while handling an update\n\nchat: <code>%d</code>\nstate: <code>%s</code>\n\n<pre>%s</pre>"
	readableAdminRole  = "Admin"
	readableSellerRole = "Seller"
	readableTrue       = "✅"
	readableFalse      = "❌"
	readableActive     = "🟢"
	readableInactive   = "🔴"
)

// Callback answers shown as a toast
const (
	ansUserMenu     = "User menu"
	ansSubscription = "Subscription menu"
	ansPayMenu      = "Pay menu"
	ansAddShop      = "Add shop"
	ansUnlinkShop   = "Unlink shops"
	ansShopList     = "Shop list"
	ansShopInfo     = "Shop info"
	ansActivate     = "Activation"
	ansSwitchActive = "Switch activation"
	ansPriceUpdate  = "Price updating"
	ansSwitchPrice  = "Switch price updating"
	ansCancel       = "Cancel"
	ansHelp         = "Help"
	ansInvalid      = "Invalid button"
)

func readableFlag(v bool) string {
	if v {
		return readableTrue
	}
	return readableFalse
}

func readableActivity(v bool) string {
	if v {
		return readableActive
	}
	return readableInactive
}
